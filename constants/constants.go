package constants

const MARKER_DIR = ".github"
const MARKER_FILE = MARKER_DIR + "/.agp"
const OPT_OUT_FILE = MARKER_DIR + "/.noagp"

const COMMIT_PREFIX = "CI (AGP)"
const TIMESTAMP_LAYOUT = "2006-01-02 15:04"

const DEFAULT_BOT_NAME = "agp-bot"
const DEFAULT_BOT_EMAIL = "agp@github.com"

const ACTOR_ENV = "GITHUB_ACTOR"
const TOKEN_ENV = "GITHUB_TOKEN"

type ContextKey int

const (
	DRY_RUN ContextKey = iota
)
