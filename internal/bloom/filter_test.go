package bloom

import (
	"fmt"
	"testing"
)

func TestNoFalseNegatives(t *testing.T) {
	f := NewWithEstimates(1000, 0.01)
	for i := 0; i < 1000; i++ {
		f.Add([]byte(fmt.Sprintf("key-%d", i)))
	}
	for i := 0; i < 1000; i++ {
		if !f.Contains([]byte(fmt.Sprintf("key-%d", i))) {
			t.Fatalf("added key key-%d reported absent", i)
		}
	}
	if f.Count() != 1000 {
		t.Errorf("Count = %d, want 1000", f.Count())
	}
}

func TestFalsePositiveRateIsBounded(t *testing.T) {
	f := NewWithEstimates(1000, 0.01)
	for i := 0; i < 1000; i++ {
		f.Add([]byte(fmt.Sprintf("member-%d", i)))
	}

	falsePositives := 0
	const probes = 10000
	for i := 0; i < probes; i++ {
		if f.Contains([]byte(fmt.Sprintf("absent-%d", i))) {
			falsePositives++
		}
	}
	// 5x headroom over the 1% target keeps this stable across hash quirks.
	if falsePositives > probes/20 {
		t.Errorf("%d false positives out of %d probes", falsePositives, probes)
	}
}

func TestEmptyFilterContainsNothing(t *testing.T) {
	f := New(1024, 7)
	if f.Contains([]byte("anything")) {
		t.Error("empty filter should contain nothing")
	}
}

func TestDefaultsOnBadArguments(t *testing.T) {
	if f := New(0, 0); f == nil || f.numBits == 0 || f.numHashes == 0 {
		t.Error("New should substitute sane defaults")
	}
	if f := NewWithEstimates(0, 2.0); f == nil {
		t.Error("NewWithEstimates should substitute sane defaults")
	}
}

func TestConcurrentAddAndContains(t *testing.T) {
	f := NewWithEstimates(4096, 0.01)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			f.Add([]byte(fmt.Sprintf("w-%d", i)))
		}
	}()
	for i := 0; i < 500; i++ {
		f.Contains([]byte(fmt.Sprintf("r-%d", i)))
	}
	<-done
	for i := 0; i < 500; i++ {
		if !f.Contains([]byte(fmt.Sprintf("w-%d", i))) {
			t.Fatalf("concurrent add of w-%d lost", i)
		}
	}
}
