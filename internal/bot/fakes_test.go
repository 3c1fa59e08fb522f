// SPDX-License-Identifier: MIT

package bot

import (
	"bytes"
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dlgram/dlgram/internal/ytdlp"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeDelivery struct {
	mu       sync.Mutex
	nextID   int
	sent     []string
	edits    []string
	lastRows [][]Choice
	deleted  []int
	media    []Media
	mediaErr error
	// mediaHook runs at the start of SendMedia, outside the mutex, so a test
	// can hold an upload open while other delivery calls proceed.
	mediaHook func()
}

func (d *fakeDelivery) SendText(_ context.Context, _ string, text string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.sent = append(d.sent, text)
	return d.nextID, nil
}

func (d *fakeDelivery) SendChoices(_ context.Context, _ string, text string, rows [][]Choice) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.sent = append(d.sent, text)
	d.lastRows = rows
	return d.nextID, nil
}

func (d *fakeDelivery) EditText(_ context.Context, _ string, _ int, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.edits = append(d.edits, text)
	return nil
}

func (d *fakeDelivery) EditChoices(_ context.Context, _ string, _ int, text string, rows [][]Choice) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.edits = append(d.edits, text)
	d.lastRows = rows
	return nil
}

func (d *fakeDelivery) DeleteMessage(_ context.Context, _ string, messageID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, messageID)
	return nil
}

func (d *fakeDelivery) SendMedia(_ context.Context, _ string, media Media) error {
	d.mu.Lock()
	hook := d.mediaHook
	err := d.mediaErr
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.media = append(d.media, media)
	return nil
}

func (d *fakeDelivery) allEdits() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.edits...)
}

func (d *fakeDelivery) allSent() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sent...)
}

func (d *fakeDelivery) allMedia() []Media {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Media(nil), d.media...)
}

func (d *fakeDelivery) deletedIDs() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.deleted...)
}

func (d *fakeDelivery) rows() [][]Choice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRows
}

type fakeProber struct {
	meta  *ytdlp.Metadata
	err   error
	panic bool
}

func (p *fakeProber) Probe(context.Context, string) (*ytdlp.Metadata, error) {
	if p.panic {
		panic("prober exploded")
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.meta, nil
}

type fakeJob struct {
	lines   chan string
	waitCh  chan error
	once    sync.Once
	stopped atomic.Bool
	expired bool
	tail    []string
}

func newFakeJob() *fakeJob {
	return &fakeJob{
		lines:  make(chan string, 32),
		waitCh: make(chan error, 1),
	}
}

func (f *fakeJob) Lines() <-chan string { return f.lines }
func (f *fakeJob) Wait() error          { return <-f.waitCh }
func (f *fakeJob) Stop()                { f.stopped.Store(true) }
func (f *fakeJob) Expired() bool        { return f.expired }
func (f *fakeJob) Tail() []string       { return f.tail }

func (f *fakeJob) emit(line string) {
	f.lines <- line
}

// finish ends the job exactly once; later calls are no-ops so a context
// watcher and the test body never double-close.
func (f *fakeJob) finish(err error) {
	f.once.Do(func() {
		close(f.lines)
		f.waitCh <- err
	})
}

type fakeDownloader struct {
	mu           sync.Mutex
	job          *fakeJob
	startErr     error
	artifact     string // file created on Start, simulating the tool's output
	artifactSize int
	started      int
	gotArgs      []string
}

func (d *fakeDownloader) Start(ctx context.Context, args []string) (Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started++
	d.gotArgs = append([]string(nil), args...)
	if d.startErr != nil {
		return nil, d.startErr
	}
	if d.artifact != "" {
		if err := os.WriteFile(d.artifact, bytes.Repeat([]byte("x"), d.artifactSize), 0o644); err != nil {
			return nil, err
		}
	}
	job := d.job
	go func() {
		<-ctx.Done()
		job.finish(context.Canceled)
	}()
	return job, nil
}

func (d *fakeDownloader) startedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}
