package application

import (
	"context"
	"errors"
	"log"

	"inference-gateway/inference/domain"

	"golang.org/x/sync/singleflight"
)

// Classifier é o que ColorService precisa do upstream.
type Classifier interface {
	Classify(ctx context.Context, label string) (string, error)
}

// ColorResult é a resposta da consulta de cor.
type ColorResult struct {
	Label  string
	Key    string
	Hex    string
	Cached bool
}

// ColorService resolve rótulos em códigos de cor: cache -> upstream -> cache.
//
// O contrato nunca falha: qualquer erro interno vira domain.NotFound.
// Misses simultâneos da mesma chave canônica dividem uma única chamada ao upstream.
type ColorService struct {
	Cache    ResponseCache
	Upstream Classifier

	group *singleflight.Group
}

func NewColorService(cache ResponseCache, upstream Classifier) *ColorService {
	return &ColorService{
		Cache:    cache,
		Upstream: upstream,
		group:    &singleflight.Group{},
	}
}

func (s *ColorService) Lookup(ctx context.Context, label string, bypass bool) ColorResult {
	key := domain.Canonicalize(label)
	res := ColorResult{Label: label, Key: key, Hex: domain.NotFound}
	if key == "" {
		return res
	}

	if v, ok := s.Cache.Lookup(ctx, key, bypass); ok {
		res.Hex = v
		res.Cached = true
		return res
	}

	// a chamada compartilhada não deve cair se o primeiro chamador desistir;
	// cada etapa tem seu próprio limite (timeout do upstream, OpTimeout do cache)
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (any, error) {
		code, err := s.Upstream.Classify(shared, label)
		if err != nil {
			return domain.NotFound, err
		}
		if code == domain.NotFound {
			return code, nil
		}
		if err := s.Cache.Store(shared, key, code); err != nil && !errors.Is(err, ErrNotCacheable) {
			log.Printf("[ColorService] failed to cache %q: %v", key, err)
		}
		return code, nil
	})
	if err != nil {
		log.Printf("[ColorService] lookup %q collapsed to %s: %v", key, domain.NotFound, err)
		return res
	}

	res.Hex = v.(string)
	return res
}
