package controller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/piwi3910/SlabNest/internal/engine"
	"github.com/piwi3910/SlabNest/internal/model"
)

type collector struct {
	mu    sync.Mutex
	items []Notification
}

func collect(ch <-chan Notification) *collector {
	c := &collector{}
	go func() {
		for n := range ch {
			c.mu.Lock()
			c.items = append(c.items, n)
			c.mu.Unlock()
		}
	}()
	return c
}

func (c *collector) all() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.items...)
}

func (c *collector) types() []MessageType {
	var out []MessageType
	for _, n := range c.all() {
		out = append(out, n.Type)
	}
	return out
}

func (c *collector) first(t MessageType) (Notification, bool) {
	for _, n := range c.all() {
		if n.Type == t {
			return n, true
		}
	}
	return Notification{}, false
}

func smallJob() model.NestJob {
	return model.NestJob{
		Sheets:    []model.Sheet{{ID: "0", Name: "Sheet 1", Width: 1000, Height: 500}},
		Inventory: []model.RawPart{model.NewRectPart("A", 100, 50, 3)},
		Config:    model.DefaultNestingConfig(),
	}
}

func largeJob() model.NestJob {
	return model.NestJob{
		Sheets:    []model.Sheet{{ID: "0", Name: "Sheet 1", Width: 2000, Height: 1000}},
		Inventory: []model.RawPart{model.NewRectPart("Block", 300, 300, 200)},
		Config:    model.DefaultNestingConfig(),
	}
}

func mustStart(job model.NestJob) Message {
	msg, err := NewStartMessage(job)
	Expect(err).NotTo(HaveOccurred())
	return msg
}

var _ = Describe("Controller", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		ctrl   *Controller
		runErr chan error
	)

	startController := func(opts ...Option) {
		ctrl = New(engine.New(), opts...)
		runErr = make(chan error, 1)
		go func() { runErr <- ctrl.Run(ctx) }()
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
		Eventually(runErr).Should(Receive(MatchError(context.Canceled)))
	})

	Context("with a valid start request", func() {
		It("should report progress and complete with the result", func() {
			startController()
			notes := collect(ctrl.Notifications())

			Expect(ctrl.Send(ctx, mustStart(smallJob()))).To(Succeed())

			Eventually(notes.types).Should(ContainElement(Complete))
			complete, _ := notes.first(Complete)
			result, ok := complete.Payload.(model.NestResult)
			Expect(ok).To(BeTrue())
			Expect(result.Parts).To(HaveLen(3))
			Expect(result.Parts[0].X).To(Equal(10.0))
			Expect(result.Parts[0].Y).To(Equal(10.0))
			Expect(complete.RunID).NotTo(BeEmpty())

			var progress []int
			for _, n := range notes.all() {
				if n.Type == Progress {
					Expect(n.RunID).To(Equal(complete.RunID))
					progress = append(progress, n.Payload.(int))
				}
			}
			Expect(progress).To(Equal([]int{33, 66, 100}))
		})

		It("should fill missing config fields from the defaults", func() {
			startController(WithDefaults(model.NestingConfig{Mode: model.ModeBBox, Spacing: 0, Rotations: 1}))
			notes := collect(ctrl.Notifications())

			payload := json.RawMessage(`{
				"sheets": [{"id": "0", "width": 300, "height": 300, "parts": []}],
				"inventory": [{"id": "p", "name": "P", "remaining": 2, "width": 100, "height": 280}]
			}`)
			Expect(ctrl.Send(ctx, Message{Type: StartNesting, Payload: payload})).To(Succeed())

			Eventually(notes.types).Should(ContainElement(Complete))
			complete, _ := notes.first(Complete)
			result := complete.Payload.(model.NestResult)
			Expect(result.Parts).To(HaveLen(2))
			Expect(result.Parts[1].X).To(Equal(115.0))
		})
	})

	Context("when stop is sent right after start", func() {
		It("should emit stopped and no completion", func() {
			startController(WithBuffer(0))

			Expect(ctrl.Send(ctx, mustStart(largeJob()))).To(Succeed())
			Expect(ctrl.Send(ctx, NewStopMessage())).To(Succeed())
			notes := collect(ctrl.Notifications())

			Eventually(notes.types).Should(ContainElement(Stopped))
			Consistently(notes.types, 200*time.Millisecond).ShouldNot(ContainElement(Complete))

			var progress int
			for _, n := range notes.all() {
				if n.Type == Progress {
					progress++
				}
			}
			Expect(progress).To(BeNumerically("<=", 1))
		})
	})

	Context("when stop is sent while idle", func() {
		It("should acknowledge immediately", func() {
			startController()
			notes := collect(ctrl.Notifications())

			Expect(ctrl.Send(ctx, NewStopMessage())).To(Succeed())
			Eventually(notes.types).Should(Equal([]MessageType{Stopped}))
		})
	})

	Context("when a run is already active", func() {
		It("should reject the second start as busy", func() {
			startController(WithBuffer(0))

			Expect(ctrl.Send(ctx, mustStart(largeJob()))).To(Succeed())
			Expect(ctrl.Send(ctx, mustStart(smallJob()))).To(Succeed())
			notes := collect(ctrl.Notifications())

			Eventually(notes.types).Should(ContainElement(Error))
			errNote, _ := notes.first(Error)
			Expect(errors.Is(errNote.Err, model.ErrBusy)).To(BeTrue())
			Expect(errNote.Payload).To(Equal(ErrorPayload{Kind: "busy", Message: errNote.Err.Error()}))

			Expect(ctrl.Send(ctx, NewStopMessage())).To(Succeed())
			Eventually(notes.types).Should(ContainElement(Stopped))
		})
	})

	Context("with malformed requests", func() {
		BeforeEach(func() {
			startController()
		})

		It("should reject unknown message types", func() {
			notes := collect(ctrl.Notifications())
			Expect(ctrl.Send(ctx, Message{Type: "PAUSE_NESTING"})).To(Succeed())

			Eventually(notes.types).Should(ContainElement(Error))
			n, _ := notes.first(Error)
			Expect(errors.Is(n.Err, model.ErrProtocol)).To(BeTrue())
		})

		It("should reject undecodable payloads", func() {
			notes := collect(ctrl.Notifications())
			Expect(ctrl.Send(ctx, Message{Type: StartNesting, Payload: json.RawMessage(`{"sheets": 7}`)})).To(Succeed())

			Eventually(notes.types).Should(ContainElement(Error))
			n, _ := notes.first(Error)
			Expect(errors.Is(n.Err, model.ErrProtocol)).To(BeTrue())
		})

		It("should reject a start without payload", func() {
			notes := collect(ctrl.Notifications())
			Expect(ctrl.Send(ctx, Message{Type: StartNesting})).To(Succeed())

			Eventually(notes.types).Should(ContainElement(Error))
			n, _ := notes.first(Error)
			Expect(errors.Is(n.Err, model.ErrProtocol)).To(BeTrue())
		})

		It("should reject invalid configuration", func() {
			notes := collect(ctrl.Notifications())
			job := smallJob()
			job.Config.Rotations = 0
			Expect(ctrl.Send(ctx, mustStart(job))).To(Succeed())

			Eventually(notes.types).Should(ContainElement(Error))
			n, _ := notes.first(Error)
			Expect(errors.Is(n.Err, model.ErrConfiguration)).To(BeTrue())
			Expect(n.Payload.(ErrorPayload).Kind).To(Equal("configuration"))
		})
	})

	Context("with an analyze request", func() {
		It("should complete with the sheet analysis", func() {
			startController()
			notes := collect(ctrl.Notifications())

			sheet := model.Sheet{ID: "4", Parts: []model.PlacementInstance{{
				ID: 1, X: 30, Y: 40, Width: 100, Height: 50,
				Contours: []model.Contour{model.RectangleContour(100, 50)},
			}}}
			msg, err := NewAnalyzeMessage(sheet)
			Expect(err).NotTo(HaveOccurred())
			Expect(ctrl.Send(ctx, msg)).To(Succeed())

			Eventually(notes.types).Should(ContainElement(Complete))
			n, _ := notes.first(Complete)
			analysis, ok := n.Payload.(model.SheetAnalysis)
			Expect(ok).To(BeTrue())
			Expect(analysis.SheetID).To(Equal("4"))
			Expect(analysis.Parts).To(HaveLen(1))
			Expect(analysis.Parts[0].Geometry.IsClosed).To(BeTrue())
			Expect(analysis.Parts[0].X).To(Equal(30.0))
		})
	})

	Context("with submitted requests", func() {
		It("should acknowledge an accepted start with its run id", func() {
			startController()
			notes := collect(ctrl.Notifications())

			ack, err := ctrl.Submit(ctx, mustStart(smallJob()))
			Expect(err).NotTo(HaveOccurred())
			Expect(ack.Err).NotTo(HaveOccurred())
			Expect(ack.RunID).NotTo(BeEmpty())

			Eventually(notes.types).Should(ContainElement(Complete))
			complete, _ := notes.first(Complete)
			Expect(complete.RunID).To(Equal(ack.RunID))
		})

		It("should acknowledge a rejected start with the error", func() {
			startController(WithBuffer(0))

			first, err := ctrl.Submit(ctx, mustStart(largeJob()))
			Expect(err).NotTo(HaveOccurred())
			notes := collect(ctrl.Notifications())

			ack, err := ctrl.Submit(ctx, mustStart(smallJob()))
			Expect(err).NotTo(HaveOccurred())
			Expect(ack.Err).To(MatchError(model.ErrBusy))

			stop, err := ctrl.Submit(ctx, NewStopMessage())
			Expect(err).NotTo(HaveOccurred())
			Expect(stop.RunID).To(Equal(first.RunID))
			Eventually(notes.types).Should(ContainElement(Stopped))
		})

		It("should return the analysis in the acknowledgement", func() {
			startController()
			collect(ctrl.Notifications())

			sheet := model.Sheet{ID: "9", Parts: []model.PlacementInstance{{
				ID: 1, Contours: []model.Contour{model.RectangleContour(40, 20)},
			}}}
			msg, err := NewAnalyzeMessage(sheet)
			Expect(err).NotTo(HaveOccurred())

			ack, err := ctrl.Submit(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			analysis, ok := ack.Payload.(model.SheetAnalysis)
			Expect(ok).To(BeTrue())
			Expect(analysis.Parts[0].Width).To(Equal(40.0))
		})
	})

	Context("after the controller stops", func() {
		It("should refuse new requests", func() {
			startController()
			notes := collect(ctrl.Notifications())
			cancel()
			Eventually(runErr).Should(Receive(MatchError(context.Canceled)))
			runErr <- context.Canceled // keep AfterEach satisfied

			Expect(ctrl.Send(context.Background(), NewStopMessage())).To(MatchError(ErrClosed))
			Expect(notes.all()).To(BeEmpty())
		})
	})
})
