package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/geodash/internal/testutil"
	"github.com/leapstack-labs/geodash/pkg/frame"
)

type params struct{ Days int }

func fixture() (*frame.Frame, error) {
	return frame.New([]string{"fatal", "race"}, [][]any{
		{float64(0), "B"},
		{float64(1), "W"},
		{nil, "B"},
	})
}

func newPipeline(t *testing.T) *Pipeline[params] {
	return &Pipeline[params]{
		Name: "test",
		Fetch: func(_ context.Context, _ params) (*frame.Frame, error) {
			return fixture()
		},
		Transform: func(f *frame.Frame, _ params) (*frame.Frame, error) {
			out, err := f.Recode("fatal", map[int64]any{0: "No", 1: "Yes"})
			if err != nil {
				return nil, err
			}
			return out.DropNA("fatal")
		},
		Summarize: func(f *frame.Frame, p params) (string, error) {
			return fmt.Sprintf("%d rows in %d days", f.Len(), p.Days), nil
		},
		Render: func(f *frame.Frame, _ params) (string, error) {
			return fmt.Sprintf("<p>%d</p>", f.Len()), nil
		},
		Logger: testutil.NewTestLogger(t),
	}
}

func TestRun(t *testing.T) {
	pl := newPipeline(t)

	res, err := pl.Run(context.Background(), params{Days: 90})
	require.NoError(t, err)
	assert.Equal(t, "<p>2</p>", res.Document)
	assert.Equal(t, "2 rows in 90 days", res.Status)
	assert.Equal(t, 2, res.Rows)
}

func TestTransformIsDeterministic(t *testing.T) {
	pl := newPipeline(t)
	in, err := fixture()
	require.NoError(t, err)

	a, err := pl.Transform(in, params{})
	require.NoError(t, err)
	b, err := pl.Transform(in, params{})
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestRun_StageErrors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name   string
		mutate func(pl *Pipeline[params])
		stage  Stage
	}{
		{"fetch", func(pl *Pipeline[params]) {
			pl.Fetch = func(context.Context, params) (*frame.Frame, error) { return nil, cause }
		}, StageFetch},
		{"transform", func(pl *Pipeline[params]) {
			pl.Transform = func(*frame.Frame, params) (*frame.Frame, error) { return nil, cause }
		}, StageTransform},
		{"summarize", func(pl *Pipeline[params]) {
			pl.Summarize = func(*frame.Frame, params) (string, error) { return "", cause }
		}, StageSummarize},
		{"render", func(pl *Pipeline[params]) {
			pl.Render = func(*frame.Frame, params) (string, error) { return "", cause }
		}, StageRender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := newPipeline(t)
			tt.mutate(pl)

			res, err := pl.Run(context.Background(), params{Days: 30})
			assert.Nil(t, res)

			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.stage, se.Stage)
			assert.Equal(t, "test", se.Pipeline)
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestRun_MissingFetch(t *testing.T) {
	pl := &Pipeline[params]{Name: "empty"}
	_, err := pl.Run(context.Background(), params{})
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageFetch, se.Stage)
}

func TestRun_OptionalStages(t *testing.T) {
	pl := &Pipeline[params]{
		Name:  "fetch-only",
		Fetch: func(context.Context, params) (*frame.Frame, error) { return nil, nil },
	}
	res, err := pl.Run(context.Background(), params{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rows)
	assert.Empty(t, res.Document)
}

func TestRun_NotifiesObservers(t *testing.T) {
	var events []Event
	pl := newPipeline(t)
	pl.Observers = []Observer{ObserverFunc(func(_ context.Context, ev Event) {
		events = append(events, ev)
	})}

	_, err := pl.Run(context.Background(), params{Days: 45})
	require.NoError(t, err)

	pl.Fetch = func(context.Context, params) (*frame.Frame, error) { return nil, errors.New("offline") }
	_, err = pl.Run(context.Background(), params{Days: 60})
	require.Error(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, params{Days: 45}, events[0].Params)
	assert.NoError(t, events[0].Err)
	assert.Equal(t, 2, events[0].Result.Rows)
	assert.Error(t, events[1].Err)
	assert.Nil(t, events[1].Result)
}

func TestRun_EventCarriesVariant(t *testing.T) {
	var got Event
	pl := newPipeline(t)
	pl.Variant = "svg"
	pl.Observers = []Observer{ObserverFunc(func(_ context.Context, ev Event) { got = ev })}

	_, err := pl.Run(context.Background(), params{Days: 45})
	require.NoError(t, err)
	assert.Equal(t, pl.Name, got.Pipeline)
	assert.Equal(t, "svg", got.Variant)
}

func TestRun_IDs(t *testing.T) {
	var seen []string
	pl := newPipeline(t)
	pl.Observers = []Observer{ObserverFunc(func(_ context.Context, ev Event) {
		seen = append(seen, ev.ID)
	})}

	res, err := pl.Run(WithRunID(context.Background(), "fixed"), params{Days: 30})
	require.NoError(t, err)
	assert.Equal(t, "fixed", res.ID)

	res, err = pl.Run(context.Background(), params{Days: 30})
	require.NoError(t, err)
	assert.Len(t, res.ID, 36)

	assert.Equal(t, []string{"fixed", res.ID}, seen)
}

func TestRun_PassesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pl := &Pipeline[params]{
		Name: "ctx",
		Fetch: func(ctx context.Context, _ params) (*frame.Frame, error) {
			return nil, ctx.Err()
		},
	}
	_, err := pl.Run(ctx, params{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIntParam_Parse(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 90},
		{"abc", 90},
		{"120", 120},
		{" 45 ", 45},
		{"10", 30},
		{"-5", 30},
		{"1000", 365},
		{"365", 365},
		{"30", 30},
		{"99.6", 90},
		{"90.7", 90},
		{"1e2", 90},
		{"NaN", 90},
		{"Inf", 90},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Days.Parse(tt.raw))
		})
	}
}

func TestIntParam_FromSignal(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"nil", nil, 90},
		{"float", float64(200), 200},
		{"float above range", float64(400), 365},
		{"nan", math.NaN(), 90},
		{"string", "150", 150},
		{"json number", json.Number("31"), 31},
		{"fractional float", 90.7, 91},
		{"fractional string", "99.6", 90},
		{"fractional json number", json.Number("45.2"), 45},
		{"unparseable string", "abc", 90},
		{"int", 7, 30},
		{"bool", true, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Days.FromSignal(tt.in))
		})
	}
}

func TestChoiceParam(t *testing.T) {
	p := ChoiceParam{Name: "x", Default: "Acceleration", Choices: []string{"Acceleration", "Weight_in_lbs"}}

	assert.Equal(t, "Weight_in_lbs", p.Parse("Weight_in_lbs"))
	assert.Equal(t, "Acceleration", p.Parse("Name; DROP"))
	assert.Equal(t, "Acceleration", p.Parse(""))
	assert.Equal(t, "Weight_in_lbs", p.FromSignal("Weight_in_lbs"))
	assert.Equal(t, "Acceleration", p.FromSignal(3.0))
}
