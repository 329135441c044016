package render

import "github.com/plus3/flare/drawcall"

// Batch is one GPU submission: every sprite shares the draw call and queue.
type Batch struct {
	Queue    Queue
	DrawCall drawcall.Entry
	Sprites  []Sprite
}

// Blend returns the blend mode of the batch's queue.
func (b Batch) Blend() Blend { return b.Queue.Blend() }

// Submitter is the GPU submission layer. Batches arrive in draw order; the
// Sprites slice is reused after Submit returns.
type Submitter interface {
	Submit(b Batch) error
	// Present ends the frame.
	Present() error
}

// BatchRecord summarises a submitted batch.
type BatchRecord struct {
	Queue    Queue
	DrawCall drawcall.ID
	Sprites  int
}

// Recorder is a Submitter that records batch summaries instead of drawing.
// It backs headless runs and tests.
type Recorder struct {
	Frames  int
	Batches []BatchRecord
	Sprites int

	// Last holds the batches of the most recently presented frame.
	Last []BatchRecord
}

func (r *Recorder) Submit(b Batch) error {
	r.Batches = append(r.Batches, BatchRecord{
		Queue:    b.Queue,
		DrawCall: b.DrawCall.ID,
		Sprites:  len(b.Sprites),
	})
	r.Sprites += len(b.Sprites)
	return nil
}

func (r *Recorder) Present() error {
	r.Frames++
	r.Last = append(r.Last[:0], r.Batches...)
	r.Batches = r.Batches[:0]
	return nil
}
