package capability

// Set bundles every capability primitive an app instance can reach through
// the runtime bridge. Unlike the build-time Tool primitive, a Set is
// constructed once per running app from its extracted manifest and handed
// to the runtime bridge; scripted code never holds a reference to a
// primitive that was not granted by the manifest.
type Set struct {
	FS         *FS
	DB         *DB
	Env        *Env
	HTTP       *HTTPClient
	Crypto     *Crypto
	Clock      *Clock
	Body       *Body
	BaseDir    string
	DBFilePath string
}

// NewSet builds the capability set for a running app. The manifest's
// fs.read/fs.write lists are not passed in: FS validates paths against
// baseDir only (FS itself is stateless). The env and hosts
// allowlists are baked into Env and HTTPClient so scripted code cannot
// widen them after the fact. db may be nil for an app whose manifest grants
// no database access path beyond what the host always provides.
func NewSet(baseDir, dbFilePath string, db *DB, envAllowlist, hostAllowlist []string, bodyCap int64) *Set {
	return &Set{
		FS:         NewFS(),
		DB:         db,
		Env:        NewEnv(envAllowlist),
		HTTP:       NewHTTPClient(hostAllowlist),
		Crypto:     NewCrypto(),
		Clock:      NewClock(),
		Body:       NewBody(bodyCap),
		BaseDir:    baseDir,
		DBFilePath: dbFilePath,
	}
}
