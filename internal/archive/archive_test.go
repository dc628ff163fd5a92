package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotKey(t *testing.T) {
	at := time.Date(2026, 2, 1, 23, 30, 0, 0, time.FixedZone("ART", -3*3600))
	key := SnapshotKey("compras-mza", "abc123", at)
	assert.Equal(t, "compras-mza/2026-02-02/abc123.html", key, "partition day is UTC")
}
