package mail

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/mailrelay/internal/observability/logger"
	"github.com/dropDatabas3/mailrelay/internal/security/secretbox"
	"github.com/dropDatabas3/mailrelay/internal/store"
)

// Resolver decide las credenciales SMTP para un envío: la config activa de
// la empresa si existe y descifra bien, sino el fallback global.
//
// Nunca devuelve error: cualquier problema (lookup, store caído, token que
// no descifra) degrada al fallback y lo señala con fallback=true para
// observabilidad. Abortar un envío por una config rota sería peor que
// mandarlo por la cuenta global.
type Resolver struct {
	configs  store.ConfigStore
	codec    *secretbox.Codec
	fallback Params

	// cache corto de params resueltos por empresa; lo invalida el service
	// de configs en cada mutación.
	cache *gocache.Cache
}

func NewResolver(configs store.ConfigStore, codec *secretbox.Codec, fallback Params, cacheTTL time.Duration) *Resolver {
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	return &Resolver{
		configs:  configs,
		codec:    codec,
		fallback: fallback,
		cache:    gocache.New(cacheTTL, 5*time.Minute),
	}
}

type cached struct {
	params   Params
	fallback bool
}

// Resolve devuelve los parámetros de envío para la empresa y si se usó el
// fallback global.
func (r *Resolver) Resolve(ctx context.Context, companyID string) (Params, bool) {
	if companyID == "" {
		return r.fallback, true
	}
	if v, ok := r.cache.Get(companyID); ok {
		c := v.(cached)
		return c.params, c.fallback
	}

	log := logger.From(ctx).With(
		logger.Component("Resolver"),
		logger.CompanyID(companyID),
	)

	cfg, err := r.configs.FindActiveConfig(ctx, companyID)
	if err != nil {
		if err != store.ErrNotFound {
			log.Error("active config lookup failed, using global fallback", logger.Err(err))
		} else {
			log.Debug("no active config, using global fallback")
		}
		r.put(companyID, r.fallback, true)
		return r.fallback, true
	}

	password, err := r.codec.Decrypt(cfg.SMTPPassword)
	if err != nil {
		// Config con secreto roto = config inutilizable, no error duro.
		log.Warn("stored password does not decrypt, using global fallback",
			logger.ConfigID(cfg.ID), logger.Err(err))
		r.put(companyID, r.fallback, true)
		return r.fallback, true
	}

	replyTo := cfg.ReplyTo
	if replyTo == "" {
		replyTo = cfg.FromEmail
	}
	p := Params{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Secure:    cfg.SMTPSecure,
		User:      cfg.SMTPUser,
		Password:  password,
		FromName:  cfg.FromName,
		FromEmail: cfg.FromEmail,
		ReplyTo:   replyTo,
	}
	r.put(companyID, p, false)
	return p, false
}

// Invalidate descarta la entrada cacheada de una empresa. Llamar en cada
// mutación de configs para que el hot path no sirva credenciales viejas.
func (r *Resolver) Invalidate(companyID string) {
	r.cache.Delete(companyID)
}

func (r *Resolver) put(companyID string, p Params, fb bool) {
	r.cache.Set(companyID, cached{params: p, fallback: fb}, gocache.DefaultExpiration)
}
