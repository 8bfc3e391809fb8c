// Package httputil provides shared HTTP response/request helpers so every
// handler produces the same JSON envelope and error structure.
package httputil
