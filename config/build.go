package config

import (
	"github.com/unkn0wn-root/autocache"
	"github.com/unkn0wn-root/autocache/aside"
	c "github.com/unkn0wn-root/autocache/codec"
)

type BuildOptions struct {
	Sink   autocache.MetricsSink // nil => monitor flags are ignored
	Logger autocache.Logger
	Codec  c.Codec
}

// Build registers every configured cache. On error nothing is left running.
func Build(cfg Config, opts BuildOptions) (*autocache.Registry, error) {
	log := opts.Logger
	if log == nil {
		log = autocache.NopLogger{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Managers = append([]ManagerConfig(nil), cfg.Managers...)
	for i := range cfg.Managers {
		cfg.Managers[i].Caches = append([]CacheConfig(nil), cfg.Managers[i].Caches...)
	}
	for _, name := range append(append([]string(nil), cfg.clamped...), cfg.applyDefaults()...) {
		log.Warn("max size clamped", autocache.Fields{
			"cache": name,
			"max":   autocache.DefaultMaxSizeExtreme,
		})
	}

	mopts := []autocache.ManagerOption{autocache.WithLogger(log)}
	if opts.Sink != nil {
		mopts = append(mopts, autocache.WithMetrics(opts.Sink))
	}
	if opts.Codec != nil {
		mopts = append(mopts, autocache.WithCodec(opts.Codec))
	}

	reg, _ := autocache.NewRegistry()
	for _, mc := range cfg.Managers {
		m := autocache.NewManager(mc.Name, mopts...)
		for _, cc := range mc.Caches {
			_, err := m.Register(autocache.Options{
				Name:             cc.Name,
				ListenPath:       cc.ListenPath,
				MaxSize:          cc.MaxSize,
				ExpireAfterWrite: cc.ExpireAfterWrite,
				SweepInterval:    cc.SweepInterval,
				Monitor:          cc.Monitor,
			})
			if err != nil {
				m.Close()
				reg.Close()
				return nil, err
			}
		}
		if err := reg.Add(m); err != nil {
			m.Close()
			reg.Close()
			return nil, err
		}
	}
	return reg, nil
}

// Interceptor builds a cache-aside interceptor over reg honouring cfg.Disable.
func Interceptor(cfg Config, reg *autocache.Registry, opts ...aside.Option) *aside.Interceptor {
	return aside.New(reg, append(opts, aside.WithDisabled(cfg.Disable))...)
}
