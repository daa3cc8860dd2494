// Package vecmath contains the float32 vector helpers shared by the
// inference service and the pipeline.
package vecmath

import "math"

// Norm возвращает L2-норму вектора.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize приводит вектор к единичной длине in-place и возвращает его же.
// Нулевой вектор не трогаем — делить не на что.
func Normalize(v []float32) []float32 {
	n := Norm(v)
	if n == 0 {
		return v
	}
	inv := 1 / n
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// Mean усредняет вектора одинаковой длины поэлементно.
func Mean(vs [][]float32) []float32 {
	if len(vs) == 0 {
		return nil
	}
	out := make([]float32, len(vs[0]))
	for _, v := range vs {
		for i, x := range v {
			out[i] += x
		}
	}
	inv := 1 / float32(len(vs))
	for i := range out {
		out[i] *= inv
	}
	return out
}
