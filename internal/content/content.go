// Package content selects canned copy (motivational, reward, craving-support
// and similar pools) uniformly at random. The pools themselves are data,
// embedded under assets/, not code.
package content

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/miralabs/mira-bot/assets"
	"github.com/miralabs/mira-bot/internal/domain"
)

type library struct {
	Vocabulary domain.Vocabulary `json:"vocabulary"`
	Pools      struct {
		Motivate    []string `json:"motivate"`
		Focus       []string `json:"focus"`
		Reward      []string `json:"reward"`
		Craving     []string `json:"craving"`
		Celebration []string `json:"celebration"`
		NoJudgment  []string `json:"no_judgment"`
	} `json:"pools"`
}

// Provider hands out one random message per call. Selection is independent
// per call and safe for concurrent use.
type Provider struct {
	lib library

	mu  sync.Mutex
	rnd *rand.Rand
}

// Load reads the embedded message file and validates that every pool has at
// least one entry.
func Load() (*Provider, error) {
	raw, err := assets.FS.ReadFile(assets.MessagesFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", assets.MessagesFile, err)
	}
	var lib library
	if err := json.Unmarshal(raw, &lib); err != nil {
		return nil, fmt.Errorf("parse %s: %w", assets.MessagesFile, err)
	}

	pools := map[string][]string{
		"motivate":        lib.Pools.Motivate,
		"focus":           lib.Pools.Focus,
		"reward":          lib.Pools.Reward,
		"craving":         lib.Pools.Craving,
		"celebration":     lib.Pools.Celebration,
		"no_judgment":     lib.Pools.NoJudgment,
		"substances":      lib.Vocabulary.Substances,
		"craving_phrases": lib.Vocabulary.CravingPhrases,
	}
	for name, pool := range pools {
		if len(pool) == 0 {
			return nil, fmt.Errorf("content pool %q is empty", name)
		}
	}

	return &Provider{
		lib: lib,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Vocabulary returns the parser vocabulary shipped with the content file.
func (p *Provider) Vocabulary() domain.Vocabulary {
	return p.lib.Vocabulary
}

func (p *Provider) pick(pool []string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pool[p.rnd.Intn(len(pool))]
}

func (p *Provider) Motivate() string    { return p.pick(p.lib.Pools.Motivate) }
func (p *Provider) Focus() string       { return p.pick(p.lib.Pools.Focus) }
func (p *Provider) Reward() string      { return p.pick(p.lib.Pools.Reward) }
func (p *Provider) Craving() string     { return p.pick(p.lib.Pools.Craving) }
func (p *Provider) Celebration() string { return p.pick(p.lib.Pools.Celebration) }
func (p *Provider) NoJudgment() string  { return p.pick(p.lib.Pools.NoJudgment) }
