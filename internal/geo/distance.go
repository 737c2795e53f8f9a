package geo

import "math"

// EarthRadius 地球平均半径（米）
const EarthRadius = 6371000.0

// Point 经纬度坐标 [lat, lng]
type Point [2]float64

// Haversine 计算两点间的大圆距离（米）
func Haversine(a, b Point) float64 {
	lat1 := a[0] * math.Pi / 180
	lat2 := b[0] * math.Pi / 180
	dLat := (b[0] - a[0]) * math.Pi / 180
	dLng := (b[1] - a[1]) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PathLength 路径总长度（米），少于两个点时为 0
func PathLength(path []Point) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += Haversine(path[i-1], path[i])
	}
	return total
}

// PathKm 路径总长度（公里），保留两位小数
func PathKm(path []Point) float64 {
	return RoundKm(PathLength(path) / 1000)
}

// RoundKm 保留两位小数
func RoundKm(km float64) float64 {
	return math.Round(km*100) / 100
}
