package location

import (
	"context"
	"testing"
	"time"

	"github.com/example/driver-dispatch/internal/models"
)

func TestSimSourceCurrentSafeDuringWatch(t *testing.T) {
	s := NewSimSource(models.Coord{Lat: 40.0, Lon: -74.0}, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	samples, err := s.Watch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range samples {
		}
	}()

	for i := 0; i < 50; i++ {
		if _, err := s.Current(ctx); err != nil {
			t.Fatal(err)
		}
	}
	cancel()
	<-done
}

func TestSimSourceWalkAdvances(t *testing.T) {
	s := NewSimSource(models.Coord{Lat: 40.0, Lon: -74.0}, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	samples, err := s.Watch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	first := <-samples
	second := <-samples
	if first == second {
		t.Fatalf("walk did not advance: %+v", first)
	}
}
