// Package reputation computes a per-author trust score from public
// GitHub account fields and caches it across a scan so repeated
// lookups for the same login never hit the API twice.
package reputation

import (
	"context"
	"sync"
	"time"

	"github.com/mahsumaktas/treliq/internal/concurrency"
	"github.com/mahsumaktas/treliq/internal/host/github"
	"github.com/mahsumaktas/treliq/internal/observability"
)

const (
	maxAccountAgeYears = 5.0
	maxFollowers       = 100.0
	maxPublicRepos     = 50.0

	ageWeight       = 0.4
	followersWeight = 0.3
	reposWeight     = 0.3
)

// ProfileFetcher is the subset of the GitHub client the probe needs,
// kept narrow so tests can stub it without a real host client.
type ProfileFetcher interface {
	GetUserProfile(ctx context.Context, login string) (github.UserProfile, error)
}

// Probe fetches and caches per-author reputation scores.
type Probe struct {
	client ProfileFetcher
	logger observability.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]float64
}

func New(client ProfileFetcher, logger observability.Logger) *Probe {
	return &Probe{
		client: client,
		logger: logger,
		now:    time.Now,
		cache:  make(map[string]float64),
	}
}

// ComputeReputation derives a 0-100 trust score from account age,
// follower count and public repo count. Each component is clamped to
// a ceiling and blended by weight; a brand-new, friendless account
// with no public repos scores near zero, a long-lived, well-followed
// account scores near 100.
func ComputeReputation(profile github.UserProfile, now time.Time) float64 {
	ageYears := now.Sub(profile.CreatedAt).Hours() / (24 * 365)
	ageScore := clampRatio(ageYears, maxAccountAgeYears)
	followerScore := clampRatio(float64(profile.Followers), maxFollowers)
	repoScore := clampRatio(float64(profile.PublicRepos), maxPublicRepos)

	return 100 * (ageWeight*ageScore + followersWeight*followerScore + reposWeight*repoScore)
}

func clampRatio(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	r := v / max
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// FetchMany resolves reputation scores for every login not already
// cached, fetching profiles in parallel bounded by gate. A per-login
// fetch failure is logged and simply excluded from the result rather
// than failing the whole batch.
func (p *Probe) FetchMany(ctx context.Context, logins []string, gate *concurrency.Gate) map[string]float64 {
	if gate == nil {
		gate = concurrency.NewGate(4, 1)
	}

	unique := dedupeLogins(logins)
	result := make(map[string]float64, len(unique))

	var toFetch []string
	p.mu.RLock()
	for _, login := range unique {
		if score, ok := p.cache[login]; ok {
			result[login] = score
		} else {
			toFetch = append(toFetch, login)
		}
	}
	p.mu.RUnlock()

	if len(toFetch) == 0 || p.client == nil {
		return result
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, login := range toFetch {
		login := login
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = gate.Do(ctx, func() error {
				profile, err := p.client.GetUserProfile(ctx, login)
				if err != nil {
					if p.logger != nil {
						p.logger.Warn(ctx, "reputation fetch failed, skipping", "login", login, "error", err)
					}
					return nil
				}
				score := ComputeReputation(profile, p.now())

				p.mu.Lock()
				p.cache[login] = score
				p.mu.Unlock()

				mu.Lock()
				result[login] = score
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	return result
}

func dedupeLogins(logins []string) []string {
	seen := make(map[string]struct{}, len(logins))
	out := make([]string, 0, len(logins))
	for _, l := range logins {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
