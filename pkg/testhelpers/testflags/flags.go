package testflags

import (
	"flag"
	"testing"
)

// Test enablement flags.
// Unit and engine tests run by default; integration tests that touch the disk need `-integration`.
var (
	unitTest        = flag.Bool("unit", true, "Run the unit go tests")
	engineTest      = flag.Bool("engine", true, "Run the tests that compile and execute wasm modules")
	integrationTest = flag.Bool("integration", false, "Run the integration go tests (badger repo, cli)")
)

// UnitTest will run the test its called from iff the `-unit` or `-short` flag
// is passed when calling `go test`. Otherwise the test will be skipped. UnitTest
// will run the test its called from in parallel.
func UnitTest(t *testing.T) {
	if !*unitTest && !testing.Short() {
		t.SkipNow()
	}
	t.Parallel()
}

// EngineTest runs the test iff `-engine` is set. These tests spin up a wazero
// runtime each, so they are kept serial.
func EngineTest(t *testing.T) {
	if !*engineTest {
		t.SkipNow()
	}
}

// IntegrationTest will run the test its called from iff the `-integration` flag
// is passed when calling `go test`.
func IntegrationTest(t *testing.T) {
	if !*integrationTest {
		t.SkipNow()
	}
	t.Parallel()
}
