package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredential: todas as credenciais falharam permanentemente (ou não há nenhuma).
	ErrNoCredential = errors.New("no usable credential")
	// ErrEmptyResult: o upstream respondeu 2xx mas sem texto.
	ErrEmptyResult = errors.New("upstream returned empty result")
	// ErrRouteNotFound: rota desconhecida (404).
	ErrRouteNotFound = errors.New("route not found")
)

// ValidationError representa entrada malformada do chamador (400).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Message
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
}

// UpstreamError é uma resposta fora de 2xx da API de inferência.
type UpstreamError struct {
	StatusCode int
	// Message é a mensagem do provedor, quando disponível.
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("upstream error: status=%d: %s", e.StatusCode, e.Message)
}

// TimeoutError indica que o upstream excedeu o limite de tempo.
// Por padrão não entra na contabilidade de falhas do pool.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream %s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
