// SPDX-License-Identifier: MIT

package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/policy"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/storageapi"
)

func TestHeader(t *testing.T) {
	h := Header("[X]")
	assert.Equal(t, strings.Repeat("#", 35)+" [X] "+strings.Repeat("#", 36), h)
	assert.Len(t, h, 76)

	long := "[" + strings.Repeat("a", 90) + "]"
	assert.Equal(t, " "+long+" ", Header(long))
}

func TestWriteRecordingList(t *testing.T) {
	start := time.Date(2024, 1, 6, 20, 0, 0, 0, time.Local)
	cs := []policy.Candidate{
		{Rec: storageapi.Recording{StartTime: start.Unix()}, SeriesTitle: "Evening News", Watched: true},
		{Rec: storageapi.Recording{StartTime: start.Add(time.Hour).Unix()}, SeriesTitle: "Heist"},
		{Rec: storageapi.Recording{StartTime: start.Add(2 * time.Hour).Unix()}, SeriesTitle: "Kids Show", Watched: true, Protected: true},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRecordingList(&buf, "[DVR 1050A1B2]", cs))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, Header("[DVR 1050A1B2]"), lines[0])
	assert.Equal(t, "Sat Jan  6 20:00:00 2024: Evening News (watched)", lines[1])
	assert.Equal(t, "Sat Jan  6 21:00:00 2024: Heist", lines[2])
	assert.Equal(t, "Sat Jan  6 22:00:00 2024: Kids Show (watched) (protected)", lines[3])
}
