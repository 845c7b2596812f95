package push

import (
	"agp/constants"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const markerTemplate = `
Auto Github Push (AGP)
https://github.com/ms-jpq/auto-github-push

---
%s
`

func timestamp(now time.Time) string {
	return now.Local().Format(constants.TIMESTAMP_LAYOUT)
}

func commitMessage(stamp string) string {
	return fmt.Sprintf("%s - %s", constants.COMMIT_PREFIX, stamp)
}

func renderMarker(stamp string) []byte {
	return []byte(fmt.Sprintf(markerTemplate, stamp))
}

// writeMarker overwrites the marker file under workdir. Writes within the same
// minute produce identical content.
func writeMarker(workdir, stamp string) error {
	return os.WriteFile(filepath.Join(workdir, filepath.FromSlash(constants.MARKER_FILE)), renderMarker(stamp), 0o644)
}
