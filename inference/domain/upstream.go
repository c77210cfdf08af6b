package domain

import "context"

// Upstream é a API de inferência externa.
//
// Implementações devolvem *UpstreamError para status HTTP fora de 2xx e
// respeitam o deadline do ctx (a política de timeout fica na aplicação).
type Upstream interface {
	// Extract envia uma imagem com o prompt fixo de OCR e devolve o texto.
	Extract(ctx context.Context, cred Credential, image []byte, mimeType string) (string, error)
	// Classify envia um rótulo com o prompt fixo de cor e devolve o texto cru.
	Classify(ctx context.Context, cred Credential, label string) (string, error)
	// Name identifica o provedor/modelo (tag de proveniência).
	Name() string
}
