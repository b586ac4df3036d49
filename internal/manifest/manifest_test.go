package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func declWith(n int) Declaration {
	var d Declaration
	for i := 0; i < n; i++ {
		d.FS.Read = append(d.FS.Read, "data/")
	}
	return d
}

func TestNewAcceptsExactly32Entries(t *testing.T) {
	_, err := New(declWith(32))
	assert.NoError(t, err)
}

func TestNewRejects33Entries(t *testing.T) {
	_, err := New(declWith(33))
	assert.ErrorIs(t, err, ErrTooManyEntries)
}

func TestNewRejectsAbsoluteFSPath(t *testing.T) {
	var d Declaration
	d.FS.Read = []string{"/etc/passwd"}
	_, err := New(d)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestNewRejectsTraversalFSPath(t *testing.T) {
	var d Declaration
	d.FS.Write = []string{"../outside"}
	_, err := New(d)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestNewNormalizesHostsToLowercase(t *testing.T) {
	var d Declaration
	d.Hosts = []string{"API.Example.COM"}
	m, err := New(d)
	require.NoError(t, err)
	assert.Equal(t, []string{"api.example.com"}, m.Hosts)
}

func TestNewAcceptsWildcardHostSentinel(t *testing.T) {
	var d Declaration
	d.Hosts = []string{"*"}
	m, err := New(d)
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, m.Hosts)
}

func TestNewRejectsNonDNSLabelHost(t *testing.T) {
	var d Declaration
	d.Hosts = []string{"http://evil.test"}
	_, err := New(d)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestIsAbsentForNilManifest(t *testing.T) {
	assert.True(t, IsAbsent(nil))
}

func TestIsAbsentFalseForDeclaredManifest(t *testing.T) {
	m, err := New(Declaration{})
	require.NoError(t, err)
	assert.False(t, IsAbsent(m))
}

func TestDeclarerRejectsSecondDeclaration(t *testing.T) {
	var d Declarer
	require.NoError(t, d.Declare())
	assert.ErrorIs(t, d.Declare(), ErrAlreadyDeclared)
}

func TestDerivePromisesEmptyForAbsentManifest(t *testing.T) {
	p := DerivePromises(nil, "db.sqlite", "/bin/app")
	assert.Empty(t, p.PledgeTokens)
	assert.Empty(t, p.UnveilPaths)
}

func TestDerivePromisesOmitsInetWhenHostsEmpty(t *testing.T) {
	m, err := New(Declaration{})
	require.NoError(t, err)
	p := DerivePromises(m, "db.sqlite", "/bin/app")
	for _, tok := range p.PledgeTokens {
		assert.NotEqual(t, "inet", tok)
	}
}

func TestDerivePromisesIncludesInetDNSWhenHostsPresent(t *testing.T) {
	var d Declaration
	d.Hosts = []string{"api.example.com"}
	m, err := New(d)
	require.NoError(t, err)

	p := DerivePromises(m, "db.sqlite", "/bin/app")
	assert.Contains(t, p.PledgeTokens, "inet")
	assert.Contains(t, p.PledgeTokens, "dns")
}

func TestDerivePromisesOrdersUnveilPaths(t *testing.T) {
	var d Declaration
	d.FS.Read = []string{"data/"}
	d.FS.Write = []string{"uploads/"}
	m, err := New(d)
	require.NoError(t, err)

	p := DerivePromises(m, "hull.db", "/bin/hull")
	require.Len(t, p.UnveilPaths, 4)
	assert.True(t, strings.HasPrefix(p.UnveilPaths[0].Path, "data"))
	assert.Equal(t, UnveilReadOnly, p.UnveilPaths[0].Mode)
	assert.True(t, strings.HasPrefix(p.UnveilPaths[1].Path, "uploads"))
	assert.Equal(t, UnveilReadWriteCreate, p.UnveilPaths[1].Mode)
	assert.Equal(t, "hull.db", p.UnveilPaths[2].Path)
	assert.Equal(t, UnveilReadWriteCreate, p.UnveilPaths[2].Mode)
	assert.Equal(t, "/bin/hull", p.UnveilPaths[3].Path)
	assert.Equal(t, UnveilReadOnly, p.UnveilPaths[3].Mode)
}

type fakeSource struct {
	decl     Declaration
	present  bool
	err      error
	released bool
}

func (f *fakeSource) ReadDeclaration() (Declaration, bool, error) { return f.decl, f.present, f.err }
func (f *fakeSource) Release()                                    { f.released = true }

func TestExtractAbsentWhenNotDeclared(t *testing.T) {
	src := &fakeSource{present: false}
	m, release, err := Extract(src)
	require.NoError(t, err)
	assert.Nil(t, m)
	release()
	assert.True(t, src.released)
}

func TestExtractBuildsManifestWhenPresent(t *testing.T) {
	var d Declaration
	d.Hosts = []string{"api.example.com"}
	src := &fakeSource{decl: d, present: true}

	m, release, err := Extract(src)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, []string{"api.example.com"}, m.Hosts)
	release()
	assert.True(t, src.released)
}
