package oidc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ydethe/quizzy/internal/observability/logger"
)

// KeySet cachea el discovery document y el JWKS de un proveedor OIDC.
//
// Se construye una vez por proceso y se comparte. Un kid desconocido dispara
// un único refresh (discovery + jwks); los refresh concurrentes se deduplican
// con singleflight y nunca se sostiene un lock durante la red. Las claves se
// reemplazan en bloque, no hay TTL: la rotación se cubre con el refresh por miss
// y con Invalidate.
type KeySet struct {
	discoveryURL string
	fetcher      Fetcher
	log          *zap.Logger
	now          func() time.Time
	minRefresh   time.Duration
	observe      func(document, result string)

	mu          sync.RWMutex
	disc        *DiscoveryDocument
	keys        map[string]Key
	gen         uint64 // se incrementa en cada refresh exitoso
	lastRefresh time.Time

	sf singleflight.Group
}

type KeySetOption func(*KeySet)

// WithMinRefreshInterval limita la frecuencia de refresh disparados por kids
// desconocidos (0 = sin límite). Invalidate ignora el límite.
func WithMinRefreshInterval(d time.Duration) KeySetOption {
	return func(ks *KeySet) { ks.minRefresh = d }
}

// WithFetchObserver recibe ("discovery"|"jwks", "ok"|"error") por cada fetch.
func WithFetchObserver(fn func(document, result string)) KeySetOption {
	return func(ks *KeySet) { ks.observe = fn }
}

func WithKeySetLogger(l *zap.Logger) KeySetOption {
	return func(ks *KeySet) { ks.log = l }
}

func withKeySetClock(now func() time.Time) KeySetOption {
	return func(ks *KeySet) { ks.now = now }
}

func NewKeySet(discoveryURL string, f Fetcher, opts ...KeySetOption) *KeySet {
	ks := &KeySet{
		discoveryURL: discoveryURL,
		fetcher:      f,
		now:          time.Now,
	}
	for _, o := range opts {
		o(ks)
	}
	if ks.log == nil {
		ks.log = logger.Named("oidc.keyset")
	}
	return ks
}

// Key resuelve kid desde cache; en miss refresca una sola vez.
// Devuelve ErrKeyNotFound si el kid sigue ausente tras el refresh.
func (ks *KeySet) Key(ctx context.Context, kid string) (Key, error) {
	ks.mu.RLock()
	k, ok := ks.keys[kid]
	seen := ks.gen
	ks.mu.RUnlock()
	if ok {
		return k, nil
	}

	if err := ks.refresh(ctx, seen); err != nil {
		return Key{}, err
	}

	ks.mu.RLock()
	k, ok = ks.keys[kid]
	ks.mu.RUnlock()
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
	}
	return k, nil
}

// Discovery devuelve el documento cacheado o lo obtiene (junto con el JWKS).
func (ks *KeySet) Discovery(ctx context.Context) (*DiscoveryDocument, error) {
	ks.mu.RLock()
	d := ks.disc
	seen := ks.gen
	ks.mu.RUnlock()
	if d != nil {
		return d, nil
	}
	if err := ks.refresh(ctx, seen); err != nil {
		return nil, err
	}
	ks.mu.RLock()
	d = ks.disc
	ks.mu.RUnlock()
	if d == nil {
		return nil, fmt.Errorf("oidc: discovery unavailable")
	}
	return d, nil
}

// Invalidate descarta discovery y claves; el próximo uso refresca.
func (ks *KeySet) Invalidate() {
	ks.mu.Lock()
	ks.disc = nil
	ks.keys = nil
	ks.lastRefresh = time.Time{}
	ks.mu.Unlock()
}

// Generation cuenta los refresh exitosos.
func (ks *KeySet) Generation() uint64 {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.gen
}

// refresh espera el refresh en curso o inicia uno. Si ya hubo un refresh
// posterior a la lectura del llamador (gen != seen) no vuelve a ir a la red.
// El fetch corre desacoplado de la cancelación del llamador: si éste se va,
// el refresh termina igual y deja la cache lista para los siguientes.
func (ks *KeySet) refresh(ctx context.Context, seen uint64) error {
	ch := ks.sf.DoChan("refresh", func() (any, error) {
		ks.mu.RLock()
		cur, last, empty := ks.gen, ks.lastRefresh, ks.keys == nil
		ks.mu.RUnlock()
		if cur != seen && !empty {
			return nil, nil
		}
		if ks.minRefresh > 0 && !empty && !last.IsZero() && ks.now().Sub(last) < ks.minRefresh {
			ks.log.Debug("keyset refresh throttled")
			return nil, nil
		}
		return nil, ks.load(context.WithoutCancel(ctx))
	})
	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ks *KeySet) load(ctx context.Context) error {
	disc, err := ks.fetchDiscovery(ctx)
	ks.record("discovery", err)
	if err != nil {
		return err
	}
	keys, err := ks.fetchKeys(ctx, disc.JWKSURI)
	ks.record("jwks", err)
	if err != nil {
		return err
	}

	ks.mu.Lock()
	ks.disc = disc
	ks.keys = keys
	ks.gen++
	ks.lastRefresh = ks.now()
	ks.mu.Unlock()

	ks.log.Info("keyset refreshed", logger.Issuer(disc.Issuer), logger.Count(len(keys)))
	return nil
}

func (ks *KeySet) fetchDiscovery(ctx context.Context) (*DiscoveryDocument, error) {
	raw, err := ks.fetcher.Fetch(ctx, ks.discoveryURL)
	if err != nil {
		return nil, err
	}
	return parseDiscovery(raw)
}

func (ks *KeySet) fetchKeys(ctx context.Context, uri string) (map[string]Key, error) {
	raw, err := ks.fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	return parseKeySet(raw)
}

func (ks *KeySet) record(document string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		ks.log.Warn("keyset fetch failed", logger.String("document", document), logger.Err(err))
	}
	if ks.observe != nil {
		ks.observe(document, result)
	}
}
