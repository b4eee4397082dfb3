package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reagentbank.io/internal/ledger"
)

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 10, cfg.PageSize)
	require.Equal(t, ledger.ModeIndividual, cfg.Mode())
	require.NoError(t, cfg.Validate())
}

func TestLoad_OverridesAndNormalizes(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
page_size: 7
account_wide: true
db_path: " /var/lib/rb/ledger.sqlite "
nav_resume_ttl: 90s
inventory:
  backpack_slots: 20
  bag_slots: [10, 12]
starter_items:
  2589: 40
events:
  brokers: ["kafka:9092", " "]
log:
  level: " DEBUG "
`), 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.PageSize)
	require.Equal(t, ledger.ModeShared, cfg.Mode())
	require.Equal(t, "/var/lib/rb/ledger.sqlite", cfg.DBPath)
	require.Equal(t, 90*time.Second, cfg.NavResumeTTL)
	require.Equal(t, []int{10, 12}, cfg.Inventory.BagSlots)
	require.Equal(t, map[uint32]uint32{2589: 40}, cfg.StarterItems)
	require.Equal(t, []string{"kafka:9092"}, cfg.Events.Brokers)
	require.True(t, cfg.Events.Enabled())
	require.Equal(t, "reagentbank.ledger", cfg.Events.Topic)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "configs/items.json", cfg.CatalogPath)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"page size": "page_size: 500\n",
		"bag slots": "inventory:\n  bag_slots: [0]\n",
		"log level": "log:\n  level: loud\n",
		"bad yaml":  "page_size: [\n",
		"starter":   "starter_items:\n  0: 1\n",
		"negative":  "nav_resume_ttl: -1s\n",
		"backpack":  "inventory:\n  backpack_slots: 300\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
			_, err := Load(p)
			require.Error(t, err)
		})
	}
}
