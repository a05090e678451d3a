package show

import (
	"bytes"
	"encoding/json"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/mpapenbr/qualipredict/pkg/model"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	cmd := NewShowCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	assert.NilError(t, cmd.Execute())
	return buf.String()
}

func TestShowCircuitsJSON(t *testing.T) {
	out := execute(t, "circuits", "-o", "json")
	var circuits []model.Circuit
	assert.NilError(t, json.Unmarshal([]byte(out), &circuits))
	assert.Check(t, is.Len(circuits, 24))
	assert.Check(t, is.Equal(circuits[0].Name, "Bahrain"))
}

func TestShowDriversJSON(t *testing.T) {
	out := execute(t, "drivers", "--output", "json")
	var drivers []model.RosterEntry
	assert.NilError(t, json.Unmarshal([]byte(out), &drivers))
	assert.Check(t, is.Len(drivers, 20))
}

func TestShowHistoricalJSON(t *testing.T) {
	out := execute(t, "historical", "-o", "json")
	var data model.HistoricalData
	assert.NilError(t, json.Unmarshal([]byte(out), &data))
	assert.DeepEqual(t, data.Summary, model.Summary{Sessions: 24, Drivers: 20, Teams: 10})
}

func TestShowPerformanceJSON(t *testing.T) {
	out := execute(t, "performance", "-o", "json")
	assert.Check(t, is.Contains(out, `"mae_mean"`))
}

func TestShowTables(t *testing.T) {
	assert.Check(t, is.Contains(execute(t, "circuits"), "Japan"))
	assert.Check(t, is.Contains(execute(t, "drivers"), "Lando Norris"))
	assert.Check(t, is.Contains(execute(t, "historical"), "Average time per circuit"))
	assert.Check(t, is.Contains(execute(t, "performance"), "Model metrics"))
}

func TestShowUnknownFormat(t *testing.T) {
	cmd := NewShowCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"drivers", "-o", "csv"})
	assert.Check(t, cmd.Execute() != nil)
}
