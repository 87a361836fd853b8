package volume

import "math"

// Example is a demonstration surface with its reference volume.
type Example struct {
	Name     string  `json:"name"`
	Function string  `json:"function"`
	A        float64 `json:"a"`
	B        float64 `json:"b"`
	C        float64 `json:"c"`
	D        float64 `json:"d"`
	Expected float64 `json:"expected"`
}

// Request returns the calculation request for the example.
func (e Example) Request() Request {
	return Request{Function: e.Function, A: e.A, B: e.B, C: e.C, D: e.D}
}

// Examples returns the demonstration surfaces.
func Examples() []Example {
	return []Example{
		{Name: "paraboloid", Function: "x**2 + y**2", A: -2, B: 2, C: -2, D: 2, Expected: 128.0 / 3},
		{Name: "gaussian", Function: "exp(-(x**2 + y**2))", A: -2, B: 2, C: -2, D: 2, Expected: math.Pi * math.Erf(2) * math.Erf(2)},
		{Name: "sine waves", Function: "sin(x) * cos(y)", A: 0, B: 2 * math.Pi, C: 0, D: 2 * math.Pi, Expected: 0},
		{Name: "saddle", Function: "x**2 - y**2", A: -2, B: 2, C: -2, D: 2, Expected: 0},
	}
}
