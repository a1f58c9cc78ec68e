package evt2

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evtkit/goevtlib/pkg/event"
)

func TestEncoderRoundTrip(t *testing.T) {
	var e Encoder
	err := e.Initialize()
	require.NoError(t, err)

	cds := []event.CD{
		{X: 10, Y: 20, Polarity: true, Time: 3},
		{X: 11, Y: 21, Polarity: false, Time: 40},
		{X: 640, Y: 480, Polarity: true, Time: 6405},
	}
	trigger := event.ExtTrigger{ID: 7, Polarity: true, Time: 6410}

	var buf []byte
	for _, ev := range cds[:2] {
		buf, err = e.EncodeCD(buf, ev)
		require.NoError(t, err)
	}
	buf, err = e.EncodeCD(buf, cds[2])
	require.NoError(t, err)
	buf, err = e.EncodeExtTrigger(buf, trigger)
	require.NoError(t, err)

	require.Zero(t, len(buf)%RawEventSize)

	var gotCDs []event.CD
	var gotTriggers []event.ExtTrigger
	d := &Decoder{
		OnCDEvent: func(ev event.CD) {
			gotCDs = append(gotCDs, ev)
		},
		OnExtTriggerEvent: func(ev event.ExtTrigger) {
			gotTriggers = append(gotTriggers, ev)
		},
	}
	err = d.Initialize()
	require.NoError(t, err)

	err = d.Decode(buf)
	require.NoError(t, err)

	require.Equal(t, cds, gotCDs)
	require.Equal(t, []event.ExtTrigger{trigger}, gotTriggers)
}

func TestEncoderErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		run  func(e *Encoder) error
		err  string
	}{
		{
			"x out of range",
			func(e *Encoder) error {
				_, err := e.EncodeCD(nil, event.CD{X: 2048, Y: 0, Time: 0})
				return err
			},
			"X is out of range: 2048",
		},
		{
			"y out of range",
			func(e *Encoder) error {
				_, err := e.EncodeCD(nil, event.CD{X: 0, Y: 4000, Time: 0})
				return err
			},
			"Y is out of range: 4000",
		},
		{
			"trigger id out of range",
			func(e *Encoder) error {
				_, err := e.EncodeExtTrigger(nil, event.ExtTrigger{ID: 32, Time: 0})
				return err
			},
			"ID is out of range: 32",
		},
		{
			"negative timestamp",
			func(e *Encoder) error {
				_, err := e.EncodeCD(nil, event.CD{Time: -1})
				return err
			},
			"timestamp is negative: -1",
		},
		{
			"non-monotonic timestamp",
			func(e *Encoder) error {
				_, err := e.EncodeCD(nil, event.CD{Time: 100})
				if err != nil {
					return err
				}
				_, err = e.EncodeCD(nil, event.CD{Time: 99})
				return err
			},
			"timestamp is not monotonic: 99 < 100",
		},
		{
			"timestamp too large",
			func(e *Encoder) error {
				_, err := e.EncodeCD(nil, event.CD{Time: 1 << 60})
				return err
			},
			"timestamp is too large: 1152921504606846976",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var e Encoder
			err := e.Initialize()
			require.NoError(t, err)

			err = ca.run(&e)
			require.EqualError(t, err, ca.err)
		})
	}
}
