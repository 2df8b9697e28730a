package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dkotova/rewritepipe/internal/queue"
)

// Runner executes one task to a terminal state. In production this is the
// pipeline's Run.
type Runner func(ctx context.Context, taskID string) error

// Pool runs N goroutines that pop pending task ids off the queue and hand
// them to the runner. Each task is processed by exactly one goroutine; tasks
// on different goroutines share nothing but the task store.
type Pool struct {
	queue  *queue.Queue
	runner Runner
	count  int
	wg     sync.WaitGroup
}

func NewPool(q *queue.Queue, runner Runner, count int) *Pool {
	return &Pool{
		queue:  q,
		runner: runner,
		count:  count,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	log.Printf("Started %d workers", p.count)
}

func (p *Pool) Stop() {
	p.wg.Wait()
	log.Println("All workers stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log.Printf("Worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		default:
			taskID, err := p.queue.Pop(ctx, 2*time.Second)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Worker %d: pop error: %v", id, err)
				continue
			}

			if taskID == "" {
				continue
			}

			log.Printf("Worker %d processing task %s", id, taskID)
			if err := p.runner(ctx, taskID); err != nil {
				log.Printf("Worker %d: task %s failed: %v", id, taskID, err)
			}
		}
	}
}
