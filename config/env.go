package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// envReader lê variáveis com default. Valor presente mas inválido não cai
// silenciosamente no default: o erro fica guardado e Load falha no start.
type envReader struct {
	errs []error
}

func (e *envReader) fail(k, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", k, v, err))
}

func (e *envReader) err() error { return errors.Join(e.errs...) }

func (e *envReader) str(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func (e *envReader) integer(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return i
}

func (e *envReader) float(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return f
}

func (e *envReader) boolean(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return b
}

func (e *envReader) duration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return d
}
