package manifest

// UnveilMode is the access mode granted to an unveiled path.
type UnveilMode string

const (
	UnveilReadOnly        UnveilMode = "r"
	UnveilReadWriteCreate UnveilMode = "rwc"
)

// UnveilPath pairs a filesystem path with the access mode to unveil it
// with.
type UnveilPath struct {
	Path string
	Mode UnveilMode
}

// Promises is the sandbox-ready output of derivation: pledge tokens plus
// the ordered unveil paths, in the exact application order §4.4 requires.
type Promises struct {
	PledgeTokens []string
	UnveilPaths  []UnveilPath
}

// basePledgeTokens are always present regardless of manifest contents
// (§4.3).
var basePledgeTokens = []string{"stdio", "rpath", "wpath", "cpath", "flock"}

// DerivePromises turns a manifest (or absence of one) into pledge tokens
// and unveil paths. dbPath and binaryPath are supplied by the host — they
// are not part of the declared manifest but are always unveiled alongside
// it (§4.4 steps 3-4).
//
// An absent manifest derives empty promises: no unveil paths, no pledge
// tokens beyond none at all — "no kernel sandbox application" per §3,
// because nothing was declared to protect.
func DerivePromises(m *Manifest, dbPath, binaryPath string) Promises {
	if IsAbsent(m) {
		return Promises{}
	}

	tokens := append([]string{}, basePledgeTokens...)
	if len(m.Hosts) > 0 {
		tokens = append(tokens, "inet", "dns")
	}

	var paths []UnveilPath
	for _, p := range m.FSRead {
		paths = append(paths, UnveilPath{Path: p, Mode: UnveilReadOnly})
	}
	for _, p := range m.FSWrite {
		paths = append(paths, UnveilPath{Path: p, Mode: UnveilReadWriteCreate})
	}
	if dbPath != "" {
		paths = append(paths, UnveilPath{Path: dbPath, Mode: UnveilReadWriteCreate})
	}
	if binaryPath != "" {
		paths = append(paths, UnveilPath{Path: binaryPath, Mode: UnveilReadOnly})
	}

	return Promises{PledgeTokens: tokens, UnveilPaths: paths}
}
