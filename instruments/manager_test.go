package instruments

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDump = `instrument_token,exchange_token,tradingsymbol,name,last_price,expiry,strike,tick_size,lot_size,instrument_type,segment,exchange
408065,1594,INFY,INFOSYS,1510.5,,0,0.05,1,EQ,NSE,NSE
884737,3456,TATAMOTORS,TATA MOTORS,610.2,,0,0.05,1,EQ,NSE,NSE
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseCSV(t *testing.T) {
	insts, err := ParseCSV(strings.NewReader(sampleDump))
	require.NoError(t, err)
	require.Len(t, insts, 2)

	infy := insts[0]
	assert.Equal(t, uint32(408065), infy.InstrumentToken)
	assert.Equal(t, "INFY", infy.Tradingsymbol)
	assert.Equal(t, "NSE", infy.Exchange)
	assert.Equal(t, 1510.5, infy.LastPrice)
	assert.Equal(t, "NSE:INFY", infy.ID())
}

func TestParseCSVMalformed(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("instrument_token,lot_size\nnot-a-number,1\n"))
	assert.Error(t, err)
}

func TestManagerLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instruments.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleDump), 0o644))

	m, err := New(Config{Logger: testLogger(), Path: path})
	require.NoError(t, err)
	defer m.Shutdown()

	assert.Equal(t, 2, m.Count())

	inst, ok := m.Lookup(408065)
	require.True(t, ok)
	assert.Equal(t, "INFY", inst.Tradingsymbol)

	inst, ok = m.LookupSymbol("NSE:TATAMOTORS")
	require.True(t, ok)
	assert.Equal(t, uint32(884737), inst.InstrumentToken)

	_, ok = m.Lookup(1)
	assert.False(t, ok)
	_, ok = m.LookupSymbol("BSE:INFY")
	assert.False(t, ok)
}

func TestManagerRequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestManagerWatchRequiresPath(t *testing.T) {
	_, err := New(Config{Logger: testLogger(), Watch: true})
	assert.Error(t, err)
}

func TestManagerTestData(t *testing.T) {
	m, err := New(Config{
		Logger: testLogger(),
		TestData: map[uint32]*Instrument{
			42: {InstrumentToken: 42, Tradingsymbol: "X", Exchange: "NSE"},
		},
	})
	require.NoError(t, err)
	defer m.Shutdown()

	inst, ok := m.Lookup(42)
	require.True(t, ok)
	assert.Equal(t, "NSE:X", inst.ID())
}

func TestManagerWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "instruments.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleDump), 0o644))

	m, err := New(Config{Logger: testLogger(), Path: path, Watch: true})
	require.NoError(t, err)
	defer m.Shutdown()
	require.Equal(t, 2, m.Count())

	extended := sampleDump + "738561,2885,RELIANCE,RELIANCE,2905.1,,0,0.05,1,EQ,NSE,NSE\n"
	require.NoError(t, os.WriteFile(path, []byte(extended), 0o644))

	require.Eventually(t, func() bool {
		return m.Count() == 3
	}, 5*time.Second, 20*time.Millisecond)

	inst, ok := m.Lookup(738561)
	require.True(t, ok)
	assert.Equal(t, "RELIANCE", inst.Tradingsymbol)
}
