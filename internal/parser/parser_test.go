package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
)

var testContext = Context{Owner: "nwp_xp", Repo: "nwpc_op", Source: "ecflow.log"}

func parse(t *testing.T, line string) Result {
	t.Helper()
	return NewEcflowParser(Options{}).Parse(testContext, line)
}

func TestParseChildComplete(t *testing.T) {
	line := "MSG:[08:17:04 29.6.2018] chd:complete /gmf_grapes_025L60_v2.2_post/18/typhoon/post/tc_post"
	res := parse(t, line)

	require.True(t, res.OK())
	rec := res.Record
	assert.Equal(t, "MSG", rec.LogType)
	assert.Equal(t, model.CommandChild, rec.CommandType)
	assert.Equal(t, "complete", rec.Command)
	assert.Equal(t, "/gmf_grapes_025L60_v2.2_post/18/typhoon/post/tc_post", rec.NodePath)
	assert.Empty(t, rec.AdditionalInformation)
	assert.Equal(t, time.Date(2018, 6, 29, 8, 17, 4, 0, time.UTC), rec.Timestamp)
	assert.Equal(t, line, rec.Raw)
	assert.Equal(t, "nwp_xp", rec.Owner)
	assert.Equal(t, "nwpc_op", rec.Repo)
}

func TestParseStatusQueued(t *testing.T) {
	line := "LOG:[23:12:00 9.10.2018] queued: /grapes_meso_3km_post/18/tograph/1h/prep_1h_10mw"
	res := parse(t, line)

	require.True(t, res.OK())
	rec := res.Record
	assert.Equal(t, model.CommandStatus, rec.CommandType)
	assert.Equal(t, "queued", rec.Command)
	assert.Equal(t, "/grapes_meso_3km_post/18/tograph/1h/prep_1h_10mw", rec.NodePath)
	assert.Empty(t, rec.AdditionalInformation)
	assert.Equal(t, "2018-10-09", rec.Date().Format("2006-01-02"))
	assert.Equal(t, "23:12:00", rec.Clock())
}

func TestParseStatusDoubleSpaceWithInformation(t *testing.T) {
	line := "LOG:[11:09:31 20.9.2018]  aborted: /grapes_meso_3km_post/06/tograph/3h/prep_3h_10mw/plot_hour_030 try-no: 1 reason: trap"
	res := parse(t, line)

	require.True(t, res.OK())
	assert.Equal(t, "aborted", res.Record.Command)
	assert.Equal(t, "/grapes_meso_3km_post/06/tograph/3h/prep_3h_10mw/plot_hour_030", res.Record.NodePath)
	assert.Equal(t, "try-no: 1 reason: trap", res.Record.AdditionalInformation)
}

func TestParseStatusCommands(t *testing.T) {
	for _, cmd := range []string{"submitted", "active", "queued", "complete", "aborted"} {
		t.Run(cmd, func(t *testing.T) {
			res := parse(t, "LOG:[10:00:00 1.1.2020]  "+cmd+": /suite/task")
			require.True(t, res.OK())
			assert.Equal(t, cmd, res.Record.Command)
			assert.NotEmpty(t, res.Record.NodePath)
		})
	}
}

func TestParseStatusUnknownIgnored(t *testing.T) {
	res := parse(t, "LOG:[10:00:00 1.1.2020]  unknown: /suite/task")

	require.NotNil(t, res.Record)
	assert.Nil(t, res.Diagnostic)
	assert.Equal(t, model.CommandStatus, res.Record.CommandType)
	assert.Empty(t, res.Record.Command)
	assert.Empty(t, res.Record.NodePath)
}

func TestParseStatusInvalidCommand(t *testing.T) {
	res := parse(t, "LOG:[10:00:00 1.1.2020]  not a command: /suite/task")

	require.NotNil(t, res.Diagnostic)
	assert.Equal(t, model.InvalidStatusCommand, res.Diagnostic.Kind)
	require.NotNil(t, res.Record)
	assert.Equal(t, "not a command", res.Record.Command)
	assert.Empty(t, res.Record.NodePath)
}

func TestParseStatusUnsupportedCommand(t *testing.T) {
	res := parse(t, "LOG:[10:00:00 1.1.2020]  suspended: /suite/task")

	require.NotNil(t, res.Diagnostic)
	assert.Equal(t, model.UnsupportedStatusCommand, res.Diagnostic.Kind)
	assert.Equal(t, "suspended", res.Record.Command)
	assert.True(t, errors.Is(res.Diagnostic, &model.Diagnostic{Kind: model.UnsupportedStatusCommand}))
}

func TestParseChildInitWithInformation(t *testing.T) {
	res := parse(t, "MSG:[12:22:53 19.10.2018] chd:abort /3km_post/06/3km_togrib2/grib2WORK/030/after_data2grib2_030  trap")

	require.True(t, res.OK())
	assert.Equal(t, "abort", res.Record.Command)
	assert.Equal(t, "/3km_post/06/3km_togrib2/grib2WORK/030/after_data2grib2_030", res.Record.NodePath)
	assert.Equal(t, "trap", res.Record.AdditionalInformation)
}

func TestParseChildEvent(t *testing.T) {
	res := parse(t, "MSG:[09:24:06 29.6.2018] chd:event transmissiondone /gmf_grapes_025L60_v2.2_post/00/tograph/base/015/AN_AEA/QFLXDIV_P700_AN_AEA_sep_015")

	require.True(t, res.OK())
	assert.Equal(t, "event", res.Record.Command)
	assert.Equal(t, "/gmf_grapes_025L60_v2.2_post/00/tograph/base/015/AN_AEA/QFLXDIV_P700_AN_AEA_sep_015", res.Record.NodePath)
	assert.Equal(t, "transmissiondone", res.Record.AdditionalInformation)
}

func TestParseChildMeterUsesRightmostToken(t *testing.T) {
	res := parse(t, "MSG:[09:24:06 29.6.2018] chd:meter forecastHours 120 /suite/fam/task")

	require.True(t, res.OK())
	assert.Equal(t, "/suite/fam/task", res.Record.NodePath)
	assert.Equal(t, "forecastHours 120", res.Record.AdditionalInformation)
}

func TestParseChildParseError(t *testing.T) {
	res := parse(t, "MSG:[09:24:06 29.6.2018] chd:label onlyonetoken")

	require.NotNil(t, res.Diagnostic)
	assert.Equal(t, model.ChildParseError, res.Diagnostic.Kind)
	require.NotNil(t, res.Record)
	assert.Equal(t, "label", res.Record.Command)
	assert.Empty(t, res.Record.NodePath)
}

func TestParseChildUnsupported(t *testing.T) {
	res := parse(t, "MSG:[09:24:06 29.6.2018] chd:wait /suite/task")

	require.NotNil(t, res.Diagnostic)
	assert.Equal(t, model.UnsupportedChildCommand, res.Diagnostic.Kind)
	assert.Equal(t, "wait", res.Record.Command)
}

func TestParseClient(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		command  string
		nodePath string
		info     string
	}{
		{"requeue", "--requeue force /suite/fam nwp_xp", "requeue", "/suite/fam", "force nwp_xp"},
		{"alter", "--alter change variable YMD 20180620 /suite nwp_xp", "alter", "/suite", "change variable YMD 20180620 nwp_xp"},
		{"run", "--run /suite/task nwp_xp", "run", "/suite/task", "nwp_xp"},
		{"free-dep", "--free-dep all /suite/task nwp_xp", "free-dep", "/suite/task", "all nwp_xp"},
		{"force state", "--force=complete /suite/task nwp_xp", "force", "/suite/task", "/suite/task nwp_xp"},
		{"force path", "--force=/suite/task complete recursive nwp_xp", "force", "/suite/task", "recursive nwp_xp"},
		{"file", "--file=/suite/task script 100 nwp_xp", "file", "/suite/task", "script 100 nwp_xp"},
		{"load", "--load=/home/nwp/suite.def nwp_xp", "load", "/home/nwp/suite.def", "nwp_xp"},
		{"begin", "--begin=suite nwp_xp", "begin", "suite", "nwp_xp"},
		{"replace", "--replace=/suite/fam client.def nwp_xp", "replace", "/suite/fam", "client.def nwp_xp"},
		{"order", "--order=/suite/fam top nwp_xp", "order", "/suite/fam", "top nwp_xp"},
		{"bare", "--restart nwp_xp", "restart", "", ""},
		{"bare without user", "--ping", "ping", "", ""},
		{"keyed bare", "--sync_full=0 nwp_xp", "sync_full", "", ""},
		{"zombie", "--zombie_kill=/suite/task nwp_xp", "zombie_kill", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parse(t, "MSG:[09:01:12 29.6.2018] "+tt.body)
			require.True(t, res.OK(), "diagnostic: %v", res.Diagnostic)
			assert.Equal(t, model.CommandClient, res.Record.CommandType)
			assert.Equal(t, tt.command, res.Record.Command)
			assert.Equal(t, tt.nodePath, res.Record.NodePath)
			assert.Equal(t, tt.info, res.Record.AdditionalInformation)
		})
	}
}

func TestParseClientDiagnostics(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		kind    model.DiagnosticKind
		command string
	}{
		{"requeue wrong arity", "--requeue /suite nwp_xp", model.ClientParseError, "requeue"},
		{"alter missing user", "--kill /suite", model.ClientParseError, "kill"},
		{"unsupported", "--shutdown nwp_xp", model.UnsupportedClientCommand, "shutdown"},
		{"unsupported keyed", "--plug=/a /b nwp_xp", model.UnsupportedClientCommand, "plug=/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parse(t, "MSG:[09:01:12 29.6.2018] "+tt.body)
			require.NotNil(t, res.Diagnostic)
			assert.Equal(t, tt.kind, res.Diagnostic.Kind)
			require.NotNil(t, res.Record)
			assert.Equal(t, tt.command, res.Record.Command)
			assert.Empty(t, res.Record.NodePath)
		})
	}
}

func TestParseServer(t *testing.T) {
	line := "MSG:[09:01:12 29.6.2018] svr:check_pt"
	res := parse(t, line)

	require.True(t, res.OK())
	assert.Equal(t, model.CommandServer, res.Record.CommandType)
	assert.Empty(t, res.Record.Command)
	assert.Empty(t, res.Record.NodePath)
	assert.Equal(t, line, res.Record.Raw)
}

func TestParseFatal(t *testing.T) {
	tests := []struct {
		name string
		line string
		kind model.DiagnosticKind
	}{
		{"empty", "", model.MalformedTimestamp},
		{"no bracket", "LOG: queued: /suite", model.MalformedTimestamp},
		{"unclosed bracket", "LOG:[10:00:00 1.1.2020 queued: /suite", model.MalformedTimestamp},
		{"bad timestamp", "LOG:[25:99:00 1.1.2020]  queued: /suite", model.MalformedTimestamp},
		{"unknown marker", "MSG:[10:00:00 1.1.2020]xyz", model.UnrecognizedMarker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parse(t, tt.line)
			assert.Nil(t, res.Record)
			require.NotNil(t, res.Diagnostic)
			assert.Equal(t, tt.kind, res.Diagnostic.Kind)
			assert.True(t, tt.kind.Fatal())
			assert.Equal(t, tt.line, res.Diagnostic.Line)
		})
	}
}

func TestParseDropPartial(t *testing.T) {
	p := NewEcflowParser(Options{DropPartial: true})
	res := p.Parse(testContext, "MSG:[09:01:12 29.6.2018] --shutdown nwp_xp")

	assert.Nil(t, res.Record)
	require.NotNil(t, res.Diagnostic)
	assert.Equal(t, model.UnsupportedClientCommand, res.Diagnostic.Kind)

	// clean lines are unaffected
	res = p.Parse(testContext, "MSG:[09:01:12 29.6.2018] svr:check_pt")
	assert.True(t, res.OK())
}

func TestParseIsTotal(t *testing.T) {
	lines := []string{
		"", ":", "[", "]", ":[]", "LOG:[", "LOG:[]", "LOG:[10:00:00 1.1.2020]",
		"LOG:[10:00:00 1.1.2020] ", "LOG:[10:00:00 1.1.2020]  :", "MSG:[10:00:00 1.1.2020] --",
		"MSG:[10:00:00 1.1.2020] chd:", "MSG:[10:00:00 1.1.2020] chd:event ",
		"MSG:[10:00:00 1.1.2020] --force=", "MSG:[10:00:00 1.1.2020] --requeue",
	}
	for _, line := range lines {
		var res Result
		require.NotPanics(t, func() { res = parse(t, line) }, "line %q", line)
		assert.True(t, res.Record != nil || res.Diagnostic != nil, "line %q", line)
		if res.Record != nil {
			assert.Equal(t, line, res.Record.Raw)
		}
	}
}
