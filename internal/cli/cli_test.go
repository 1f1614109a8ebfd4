package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuforge/internal/domain/auth"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAbbrevCmd(t *testing.T) {
	out, err := run(t, AbbrevCmd(), "Air Conditioner Filter")
	require.NoError(t, err)
	assert.Equal(t, "ACF\n", out)
}

func TestGroupCmd(t *testing.T) {
	out, err := run(t, GroupCmd(), "T-Shirts", "Nike")
	require.NoError(t, err)
	assert.Equal(t, "TSH-NKE\n", out)
}

func TestFormatCmd(t *testing.T) {
	out, err := run(t, FormatCmd(), "ACF-ACT", "255")
	require.NoError(t, err)
	assert.Equal(t, "ACF-ACT-00FF\n", out)

	out, err = run(t, FormatCmd(), "--format", "decimal", "ACF-ACT", "7")
	require.NoError(t, err)
	assert.Equal(t, "ACF-ACT-007\n", out)

	_, err = run(t, FormatCmd(), "ACF-ACT", "0")
	assert.Error(t, err)
}

func TestParseCmd(t *testing.T) {
	out, err := run(t, ParseCmd(), "ACF-ACT-10000")
	require.NoError(t, err)
	assert.Equal(t, "group=ACF-ACT number=65536\n", out)

	_, err = run(t, ParseCmd(), "ACF-ACT-001")
	assert.Error(t, err)
}

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitIDs([]string{"a,b", " c ", "a", ","}))
}

func TestAssignCmd_MemoryBackend(t *testing.T) {
	envDir = t.TempDir()

	out, err := run(t, AssignCmd(), "p1,p2")
	require.Error(t, err, "memory catalog starts empty")
	assert.Contains(t, out, "p1")
	assert.Contains(t, out, "error: item not found")
	assert.Contains(t, out, "updated 0 variant(s), 2 error(s)")
}

func TestSequenceAdvanceAndShow(t *testing.T) {
	envDir = t.TempDir()

	// the memory store lives for one command, so show starts from Initial
	out, err := run(t, SequenceCmd(), "advance", "Bag", "Acme Tools", "41")
	require.NoError(t, err)
	assert.Equal(t, "BAG-ACT last=41\n", out)

	out, err = run(t, SequenceCmd(), "show", "Bag", "Acme Tools")
	require.NoError(t, err)
	assert.Equal(t, "BAG-ACT seq_bag-act last=0 next=BAG-ACT-0001\n", out)
}

func TestCatalogImport_NeedsPostgres(t *testing.T) {
	envDir = t.TempDir()
	file := filepath.Join(envDir, "items.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"id":"p1","vendor":"Nike","productType":"Shoes","targets":[{"id":"v1"}]}]`), 0o600))

	_, err := run(t, CatalogCmd(), "import", file)
	assert.ErrorContains(t, err, "postgres")
}

func TestReadItems(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"vendor":"x"}]`), 0o600))
	_, err := readItems(bad)
	assert.ErrorContains(t, err, "no id")

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`[{"id":"p1","targets":[{"id":"v1","sku":"X"}]}]`), 0o600))
	items, err := readItems(good)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "X", items[0].Targets[0].SKU)
}

func TestTokenCmd(t *testing.T) {
	envDir = t.TempDir()
	t.Setenv("AUTH_API_KEY", "app-key")
	t.Setenv("AUTH_API_SECRET", "s3cret")

	out, err := run(t, TokenCmd(), "--shop", "demo.myshopify.com", "--user", "7")
	require.NoError(t, err)

	v := auth.NewSessionValidator(auth.SessionConfig{APIKey: "app-key", APISecret: "s3cret"})
	session, err := v.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "demo.myshopify.com", session.Shop)
	assert.Equal(t, "7", session.UserID)
}

func TestTokenCmd_RequiresSecret(t *testing.T) {
	envDir = t.TempDir()
	_, err := run(t, TokenCmd(), "--shop", "demo.myshopify.com")
	assert.ErrorContains(t, err, "AUTH_API_SECRET")
}
