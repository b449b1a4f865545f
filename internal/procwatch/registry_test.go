package procwatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MartinKavik/popos-fix-vram-leak/internal/procwatch"
)

type fakeInspector struct {
	mu         sync.Mutex
	pids       []int32
	environ    map[int32][]string
	names      map[int32]string
	alive      map[int32]bool
	terminated []int32
	killed     []int32
}

func (f *fakeInspector) Pids() ([]int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int32(nil), f.pids...), nil
}

func (f *fakeInspector) Environ(pid int32) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	env, ok := f.environ[pid]
	if !ok {
		return nil, errors.New("process gone")
	}
	return env, nil
}

func (f *fakeInspector) Name(pid int32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.names[pid]
	if !ok {
		return "", errors.New("process gone")
	}
	return name, nil
}

func (f *fakeInspector) Alive(pid int32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *fakeInspector) Terminate(pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	return nil
}

func (f *fakeInspector) Kill(pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, pid)
	return nil
}

func TestNewTagUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		tag := procwatch.NewTag()
		if seen[tag] {
			t.Fatalf("duplicate tag %q", tag)
		}
		seen[tag] = true
	}
}

func TestFindByTagExactMatch(t *testing.T) {
	tag := "cycle-abc123"
	insp := &fakeInspector{
		pids: []int32{10, 11, 12, 13, 14},
		environ: map[int32][]string{
			10: {"HOME=/root", procwatch.TagVar + "=" + tag},
			11: {procwatch.TagVar + "=" + tag + "-other"},
			12: {procwatch.TagVar + "=other-tag"},
			14: {"PATH=/bin", procwatch.TagVar + "=" + tag},
			// 13 has no readable environment: skipped, not an error.
		},
	}
	r := &procwatch.Registry{Inspector: insp}
	got := r.FindByTag(tag)
	if len(got) != 2 || got[0] != 10 || got[1] != 14 {
		t.Errorf("expected [10 14], got %v", got)
	}
}

func TestFindByTagEmpty(t *testing.T) {
	r := &procwatch.Registry{Inspector: &fakeInspector{pids: []int32{1}}}
	if got := r.FindByTag("no-such-tag"); len(got) != 0 {
		t.Errorf("expected empty set, got %v", got)
	}
}

func TestTerminateGracefulThenKill(t *testing.T) {
	insp := &fakeInspector{
		alive: map[int32]bool{20: false, 21: true},
	}
	r := &procwatch.Registry{Inspector: insp}
	err := r.Terminate(context.Background(), []int32{20, 21}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if len(insp.terminated) != 2 {
		t.Errorf("expected SIGTERM to both, got %v", insp.terminated)
	}
	if len(insp.killed) != 1 || insp.killed[0] != 21 {
		t.Errorf("expected SIGKILL only to survivor 21, got %v", insp.killed)
	}
}

func TestTerminateNoPids(t *testing.T) {
	r := &procwatch.Registry{Inspector: &fakeInspector{}}
	start := time.Now()
	if err := r.Terminate(context.Background(), nil, time.Second); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Terminate with no pids should not wait out the grace period")
	}
}

func TestTerminateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &procwatch.Registry{Inspector: &fakeInspector{}}
	err := r.Terminate(ctx, []int32{30}, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCountByBasename(t *testing.T) {
	insp := &fakeInspector{
		pids: []int32{1, 2, 3, 4},
		names: map[int32]string{
			1: "cosmic-term",
			2: "cosmic-term-helper",
			3: "cosmic-term",
			// 4 vanished mid-scan.
		},
	}
	r := &procwatch.Registry{Inspector: insp}
	n, err := r.CountByBasename("cosmic-term")
	if err != nil {
		t.Fatalf("CountByBasename: %v", err)
	}
	if n != 2 {
		t.Errorf("expected exact-name count 2, got %d", n)
	}
}

func TestSpawnAndDiscoverReal(t *testing.T) {
	tag := procwatch.NewTag()
	r := procwatch.NewRegistry(nil)
	if err := r.Spawn("sleep", []string{"30"}, tag, nil); err != nil {
		t.Skipf("cannot spawn sleep: %v", err)
	}
	// The environment scan needs a moment for the child to exec.
	var pids []int32
	for i := 0; i < 20; i++ {
		pids = r.FindByTag(tag)
		if len(pids) > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if len(pids) == 0 {
		t.Skip("tagged process not visible; environment scan unsupported here")
	}
	if err := r.Terminate(context.Background(), pids, 200*time.Millisecond); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	for i := 0; i < 20; i++ {
		if len(r.FindByTag(tag)) == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Error("tagged processes still present after terminate")
}

func TestSpawnMissingCommand(t *testing.T) {
	r := procwatch.NewRegistry(nil)
	if err := r.Spawn("no-such-binary-8341", nil, "t", nil); err == nil {
		t.Error("expected error spawning missing command")
	}
}
