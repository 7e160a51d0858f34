package orchestration

import (
	"sync"
	"testing"
	"time"

	"github.com/MossHollow/InterludeEngine/internal/models"
)

func fastBreathTiming() models.BreathTiming {
	return models.BreathTiming{
		Inhale: 5 * time.Millisecond,
		Hold1:  5 * time.Millisecond,
		Exhale: 5 * time.Millisecond,
		Hold2:  5 * time.Millisecond,
	}
}

func TestNewBreathEngineRejectsInvalidTiming(t *testing.T) {
	_, err := NewBreathEngine(models.BreathTiming{}, BreathCallbacks{})
	if err == nil {
		t.Fatal("Expected error for zero timing")
	}
}

func TestBreathEngineStageSequence(t *testing.T) {
	stages := make(chan models.BreathStage, 16)
	engine, err := NewBreathEngine(fastBreathTiming(), BreathCallbacks{
		OnStageChange: func(stage models.BreathStage, cycleCount int) {
			select {
			case stages <- stage:
			default:
			}
		},
	})
	if err != nil {
		t.Fatalf("Expected no error creating engine, got %v", err)
	}
	engine.Start()
	defer engine.Stop()

	expected := []models.BreathStage{
		models.BreathStageInhale,
		models.BreathStageHold1,
		models.BreathStageExhale,
		models.BreathStageHold2,
		models.BreathStageInhale,
	}
	for i, want := range expected {
		select {
		case got := <-stages:
			if got != want {
				t.Fatalf("Stage %d: expected %s, got %s", i, want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for stage %d (%s)", i, want)
		}
	}
}

func TestBreathEngineCycleCount(t *testing.T) {
	cycles := make(chan int, 8)
	engine, err := NewBreathEngine(fastBreathTiming(), BreathCallbacks{
		OnCycleComplete: func(count int) { cycles <- count },
	})
	if err != nil {
		t.Fatalf("Expected no error creating engine, got %v", err)
	}
	engine.Start()
	defer engine.Stop()

	for want := 1; want <= 3; want++ {
		select {
		case got := <-cycles:
			if got != want {
				t.Fatalf("Expected cycle count %d, got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for cycle %d", want)
		}
	}
	if engine.CycleCount() < 3 {
		t.Errorf("Expected at least 3 completed cycles, got %d", engine.CycleCount())
	}
}

func TestBreathEngineStopSilencesCallbacks(t *testing.T) {
	var mu sync.Mutex
	var count int
	engine, err := NewBreathEngine(fastBreathTiming(), BreathCallbacks{
		OnStageChange: func(stage models.BreathStage, cycleCount int) {
			mu.Lock()
			count++
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Expected no error creating engine, got %v", err)
	}
	engine.Start()
	time.Sleep(20 * time.Millisecond)
	engine.Stop()
	engine.Stop()

	// Let any callback already in flight at Stop land before snapshotting.
	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	after := count
	mu.Unlock()
	time.Sleep(40 * time.Millisecond)
	mu.Lock()
	final := count
	mu.Unlock()

	if final != after {
		t.Errorf("Expected no callbacks after Stop, got %d more", final-after)
	}
}

func TestBreathEngineStartAfterStopIsNoOp(t *testing.T) {
	engine, err := NewBreathEngine(fastBreathTiming(), BreathCallbacks{})
	if err != nil {
		t.Fatalf("Expected no error creating engine, got %v", err)
	}
	engine.Stop()
	engine.Start()
	if engine.Stage() != models.BreathStage("") {
		t.Errorf("Expected stopped engine not to start, got stage %s", engine.Stage())
	}
}

func TestBreathEngineDoubleStartIsNoOp(t *testing.T) {
	starts := make(chan struct{}, 4)
	engine, err := NewBreathEngine(fastBreathTiming(), BreathCallbacks{
		OnStageChange: func(stage models.BreathStage, cycleCount int) {
			if stage == models.BreathStageInhale && cycleCount == 0 {
				starts <- struct{}{}
			}
		},
	})
	if err != nil {
		t.Fatalf("Expected no error creating engine, got %v", err)
	}
	engine.Start()
	engine.Start()
	defer engine.Stop()

	<-starts
	select {
	case <-starts:
		t.Error("Expected second Start to be a no-op")
	case <-time.After(3 * time.Millisecond):
	}
}
