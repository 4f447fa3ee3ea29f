// Package supervisor owns the account-wide discovery loop: it walks the
// follow list, decides which broadcasters are live, launches a Session for
// each newly-live one, and reaps sessions whose room has ended.
//
// Grounded on the teacher's internal/session/manager.go Start/Stop staged
// bring-up and its periodic-poll shape, generalized from a single
// hard-coded room into a fleet of concurrently tracked rooms keyed by
// web_rid, with the registry package replacing the teacher's fixed
// bigoRoomIndex/streamerIdIndex maps.
package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"livepulse/internal/credential"
	"livepulse/internal/platform"
	"livepulse/internal/registry"
	"livepulse/internal/session"
	"livepulse/internal/store"
)

// Options configures the Supervisor's timing and identity.
type Options struct {
	DiscoveryInterval time.Duration
	ZombieTimeout     time.Duration
	SecUserID         string // the authenticated account's own sec_uid, for follow-list paging
}

// Supervisor is the process-wide fleet manager.
type Supervisor struct {
	deps     session.Dependencies
	writer   *store.Writer
	platform *platform.Client
	pool     *credential.Pool
	reg      *registry.Registry
	log      zerolog.Logger
	opts     Options
}

// New builds a Supervisor ready to Run.
func New(deps session.Dependencies, writer *store.Writer, plat *platform.Client, pool *credential.Pool, log zerolog.Logger, opts Options) *Supervisor {
	if opts.DiscoveryInterval <= 0 {
		opts.DiscoveryInterval = 20 * time.Second
	}
	if opts.ZombieTimeout <= 0 {
		opts.ZombieTimeout = 180 * time.Second
	}
	return &Supervisor{
		deps:     deps,
		writer:   writer,
		platform: plat,
		pool:     pool,
		reg:      registry.New(),
		log:      log.With().Str("component", "supervisor").Logger(),
		opts:     opts,
	}
}

// Run drives the discovery/reap/launch cycle until ctx is cancelled.
func (sv *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(sv.opts.DiscoveryInterval)
	defer ticker.Stop()

	sv.tick(ctx)
	for {
		select {
		case <-ticker.C:
			sv.tick(ctx)
		case <-ctx.Done():
			sv.drainAll()
			return
		}
	}
}

func (sv *Supervisor) tick(ctx context.Context) {
	live, err := sv.discover(ctx)
	if err != nil {
		sv.log.Warn().Err(err).Msg("discovery round failed")
		return
	}
	sv.reap(ctx, live)
	sv.launch(ctx, live)

	if n, err := sv.writer.ClearZombieRooms(ctx, sv.opts.ZombieTimeout); err != nil {
		sv.log.Warn().Err(err).Msg("zombie cleanup failed")
	} else if n > 0 {
		sv.log.Info().Int64("count", n).Msg("cleared zombie rooms")
	}
}

// Tracked returns a snapshot of every room currently being recorded, for
// the status server's inventory endpoint.
func (sv *Supervisor) Tracked() []registry.Entry { return sv.reg.Snapshot() }

// drainAll cancels every tracked session; used on shutdown.
func (sv *Supervisor) drainAll() {
	for _, e := range sv.reg.Snapshot() {
		e.Cancel()
	}
}

// liveBroadcaster is one discovery hit that is currently live and carries
// enough metadata to seed a fast-path Session.
type liveBroadcaster struct {
	webRID        string
	roomID        string
	secUID        string
	uid           string
	nickname      string
	avatar        string
	cover         string
	followerCount int64
}

// credentialAttempt runs op against successive pool credentials, rotating
// or invalidating on classified errors, bounded to len(pool)+2 tries.
func (sv *Supervisor) credentialAttempt(ctx context.Context, op func(cookie string) error) error {
	bound := sv.pool.Len() + 2
	for i := 0; i < bound; i++ {
		rec, err := sv.pool.Current()
		if err != nil {
			sv.log.Warn().Err(err).Msg("credential pool exhausted, backing off")
			select {
			case <-time.After(60 * time.Second):
			case <-ctx.Done():
			}
			return err
		}
		err = op(rec.Cookie)
		if err == nil {
			return nil
		}
		switch {
		case isCredentialInvalid(err):
			if invErr := sv.pool.Invalidate(rec.Cookie); invErr != nil {
				sv.log.Error().Err(invErr).Msg("credential invalidate failed")
			}
		default:
			sv.pool.Rotate()
		}
		sv.log.Debug().Err(err).Int("attempt", i+1).Msg("credentialed call failed, retrying with next credential")
	}
	return context.DeadlineExceeded
}
