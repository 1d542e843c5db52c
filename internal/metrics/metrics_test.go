package metrics

import (
	"bytes"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(operationsTotal.WithLabelValues("copy", "success"))
	failedBefore := testutil.ToFloat64(operationsTotal.WithLabelValues("copy", "error"))

	RecordOperationStart()
	assert.GreaterOrEqual(t, testutil.ToFloat64(operationsInFlight), 1.0)
	RecordOperationEnd("copy", nil)

	RecordOperationStart()
	RecordOperationEnd("copy", errors.New("boom"))

	assert.Equal(t, before+1, testutil.ToFloat64(operationsTotal.WithLabelValues("copy", "success")))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(operationsTotal.WithLabelValues("copy", "error")))
}

func TestRecordBytes(t *testing.T) {
	before := testutil.ToFloat64(bytesTransferred.WithLabelValues("move"))
	RecordBytes("move", 1024)
	RecordBytes("move", 0)
	RecordBytes("move", -5)
	assert.Equal(t, before+1024, testutil.ToFloat64(bytesTransferred.WithLabelValues("move")))
}

func TestRecordConflict(t *testing.T) {
	before := testutil.ToFloat64(conflictsTotal.WithLabelValues("combine"))
	RecordConflict("combine")
	assert.Equal(t, before+1, testutil.ToFloat64(conflictsTotal.WithLabelValues("combine")))
}

func TestWriteText(t *testing.T) {
	RecordConflict("skip")

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf))

	out := buf.String()
	assert.Contains(t, out, "razor_conflicts_total")
	assert.Contains(t, out, `decision="skip"`)
	assert.NotContains(t, out, "go_goroutines")
}
