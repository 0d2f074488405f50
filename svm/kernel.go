package svm

import (
	"math"
	"strconv"
	"strings"

	"github.com/viant/sqlite-ml/mlerr"
	"gonum.org/v1/gonum/floats"
)

// KernelFunc computes the kernel value of two equally sized vectors.
type KernelFunc func(a, b []float64) float64

// Kernel names.
const (
	KernelLinear     = "linear"
	KernelPolynomial = "polynomial"
	KernelGaussian   = "gaussian"
)

// Linear is the plain dot product.
func Linear(a, b []float64) float64 { return floats.Dot(a, b) }

// Polynomial returns (dot(a, b) + coef0)^degree.
func Polynomial(degree int, coef0 float64) KernelFunc {
	return func(a, b []float64) float64 {
		return math.Pow(floats.Dot(a, b)+coef0, float64(degree))
	}
}

// Gaussian returns exp(-gamma * |a-b|^2).
func Gaussian(gamma float64) KernelFunc {
	return func(a, b []float64) float64 {
		d := floats.Distance(a, b, 2)
		return math.Exp(-gamma * d * d)
	}
}

// ResolveKernel parses a kernel specification such as "linear",
// "polynomial(3)", "polynomial(2, 0.5)" or "gaussian(0.1)".
func ResolveKernel(spec string) (KernelFunc, error) {
	const op = "svm.kernel"
	name, args, err := parseKernelSpec(spec)
	if err != nil {
		return nil, err
	}
	switch name {
	case KernelLinear, "":
		if len(args) != 0 {
			return nil, mlerr.Configuration(op, "kernel", "linear kernel takes no parameters: %q", spec)
		}
		return Linear, nil
	case KernelPolynomial, "poly":
		if len(args) < 1 || len(args) > 2 {
			return nil, mlerr.Configuration(op, "kernel", "polynomial kernel needs degree[, coef0]: %q", spec)
		}
		degree := int(args[0])
		if float64(degree) != args[0] || degree < 1 {
			return nil, mlerr.Configuration(op, "degree", "polynomial degree must be a positive integer: %q", spec)
		}
		coef0 := 1.0
		if len(args) == 2 {
			coef0 = args[1]
		}
		return Polynomial(degree, coef0), nil
	case KernelGaussian, "rbf":
		gamma := 1.0
		switch len(args) {
		case 0:
		case 1:
			gamma = args[0]
		default:
			return nil, mlerr.Configuration(op, "kernel", "gaussian kernel takes one gamma parameter: %q", spec)
		}
		if gamma <= 0 {
			return nil, mlerr.Configuration(op, "gamma", "gamma must be positive: %q", spec)
		}
		return Gaussian(gamma), nil
	}
	return nil, mlerr.Configuration(op, "kernel", "unknown kernel %q", spec)
}

func parseKernelSpec(spec string) (string, []float64, error) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	open := strings.IndexByte(spec, '(')
	if open < 0 {
		return spec, nil, nil
	}
	if !strings.HasSuffix(spec, ")") {
		return "", nil, mlerr.Configuration("svm.kernel", "kernel", "unbalanced parentheses in %q", spec)
	}
	name := strings.TrimSpace(spec[:open])
	inner := strings.TrimSpace(spec[open+1 : len(spec)-1])
	if inner == "" {
		return name, nil, nil
	}
	var args []float64
	for _, part := range strings.Split(inner, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return "", nil, mlerr.Configuration("svm.kernel", "kernel", "invalid parameter %q in %q", part, spec)
		}
		args = append(args, v)
	}
	return name, args, nil
}
