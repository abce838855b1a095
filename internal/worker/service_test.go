package worker_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/revsim/internal/compute"
	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/potentials"
	"github.com/san-kum/revsim/internal/sim"
	"github.com/san-kum/revsim/internal/worker"
)

func pairSystem(k float64, steps int) sim.System {
	lambdas := make([]float64, steps)
	for i := range lambdas {
		lambdas[i] = float64(i) / float64(steps)
	}
	return sim.System{
		Masses: []float64{1.0, 12.0},
		X0:     [][3]float64{{1.0, 0.5, -0.5}, {0.2, 0.1, -0.3}},
		Terms: []potentials.Spec{
			{Kind: potentials.HarmonicBond, Bond: &potentials.BondArgs{
				Bonds:  [][2]int{{0, 1}},
				Params: [][2]float64{{k, 0.6}},
			}},
			{Kind: potentials.Restraint, Restraint: &potentials.RestraintArgs{
				Pairs:  [][2]int{{0, 1}},
				Params: [][2]float64{{20, 0.8}},
			}},
		},
		Integrator: sim.Integrator{
			Dt:          0.002,
			Lambdas:     lambdas,
			Seed:        7,
			Friction:    5,
			Temperature: 300,
		},
	}
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

var _ = Describe("Service", func() {
	var (
		svc *worker.Service
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc = worker.New(compute.NewCPUBackend(2), worker.WithLogger(logger))
	})

	AfterEach(func() {
		svc.Close()
	})

	forward := func(key string, sys sim.System) *worker.ForwardReply {
		reply, err := svc.Forward(ctx, &worker.ForwardRequest{
			System:    sys,
			Precision: "double",
			Key:       key,
			NFrames:   2,
		})
		Expect(err).NotTo(HaveOccurred())
		return reply
	}

	Describe("Forward", func() {
		It("returns one series per term and one energy per step", func() {
			reply := forward("a", pairSystem(50, 10))
			Expect(reply.DuDls).To(HaveLen(2))
			Expect(reply.DuDls[0]).To(BeNil())
			Expect(reply.DuDls[1]).To(HaveLen(10))
			Expect(reply.Energies).To(HaveLen(10))
			Expect(reply.Frames).To(HaveLen(2))
		})

		It("does not retain inference passes", func() {
			_, err := svc.Forward(ctx, &worker.ForwardRequest{
				System:    pairSystem(50, 5),
				Precision: "single",
				Inference: true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.Sessions(ctx)).To(BeEmpty())
		})

		It("requires a key unless inferring", func() {
			_, err := svc.Forward(ctx, &worker.ForwardRequest{System: pairSystem(50, 5), Precision: "double"})
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
		})

		It("rejects an unknown precision", func() {
			_, err := svc.Forward(ctx, &worker.ForwardRequest{System: pairSystem(50, 5), Precision: "half", Key: "a"})
			Expect(err).To(MatchError(dynamo.ErrUnknownPrecision))
			Expect(dynamo.IsConfigError(err)).To(BeTrue())
		})

		It("rejects an invalid system without storing it", func() {
			sys := pairSystem(50, 5)
			sys.Masses[0] = -1
			_, err := svc.Forward(ctx, &worker.ForwardRequest{System: sys, Precision: "double", Key: "a"})
			Expect(dynamo.IsConfigError(err)).To(BeTrue())
			Expect(svc.Sessions(ctx)).To(BeEmpty())
		})

		It("rejects a cancelled request without storing a session", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := svc.Forward(cctx, &worker.ForwardRequest{System: pairSystem(50, 5), Precision: "double", Key: "a"})
			Expect(err).To(MatchError(context.Canceled))
			Expect(svc.Sessions(ctx)).To(BeEmpty())
		})
	})

	Describe("Backward", func() {
		It("consumes the session", func() {
			forward("a", pairSystem(50, 10))
			req := &worker.BackwardRequest{Key: "a", AdjointDuDls: [][]float64{nil, ones(10)}}

			reply, err := svc.Backward(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Grads).To(HaveLen(2))
			Expect(reply.Grads[0].Block("params")).NotTo(BeNil())
			Expect(reply.Grads[1].Absent).To(BeTrue())

			_, err = svc.Backward(ctx, req)
			Expect(err).To(MatchError(dynamo.ErrSessionNotFound))
		})

		It("keeps the session live after a malformed adjoint", func() {
			forward("a", pairSystem(50, 10))
			_, err := svc.Backward(ctx, &worker.BackwardRequest{Key: "a", AdjointDuDls: [][]float64{nil, ones(3)}})
			Expect(dynamo.IsConfigError(err)).To(BeTrue())
			Expect(svc.Sessions(ctx)).To(ConsistOf("a"))

			_, err = svc.Backward(ctx, &worker.BackwardRequest{Key: "a", AdjointDuDls: [][]float64{nil, ones(10)}})
			Expect(err).NotTo(HaveOccurred())
		})

		It("uses the latest system stored under a key", func() {
			forward("a", pairSystem(50, 10))
			forward("a", pairSystem(80, 6))
			Expect(svc.Sessions(ctx)).To(ConsistOf("a"))

			_, err := svc.Backward(ctx, &worker.BackwardRequest{Key: "a", AdjointDuDls: [][]float64{nil, ones(10)}})
			Expect(dynamo.IsConfigError(err)).To(BeTrue())
			_, err = svc.Backward(ctx, &worker.BackwardRequest{Key: "a", AdjointDuDls: [][]float64{nil, ones(6)}})
			Expect(err).NotTo(HaveOccurred())
		})

		It("matches a fresh single-session run", func() {
			forward("a", pairSystem(50, 10))
			forward("b", pairSystem(70, 10))
			adj := [][]float64{nil, ones(10)}
			mixed, err := svc.Backward(ctx, &worker.BackwardRequest{Key: "a", AdjointDuDls: adj})
			Expect(err).NotTo(HaveOccurred())

			forward("c", pairSystem(50, 10))
			alone, err := svc.Backward(ctx, &worker.BackwardRequest{Key: "c", AdjointDuDls: adj})
			Expect(err).NotTo(HaveOccurred())
			Expect(mixed.Grads[0].Block("params").Values).To(Equal(alone.Grads[0].Block("params").Values))
		})

		It("requires a key", func() {
			_, err := svc.Backward(ctx, &worker.BackwardRequest{})
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
		})
	})

	Describe("Reset", func() {
		It("drops every session", func() {
			forward("a", pairSystem(50, 5))
			forward("b", pairSystem(50, 5))
			Expect(svc.Reset(ctx)).To(Succeed())
			Expect(svc.Sessions(ctx)).To(BeEmpty())

			_, err := svc.Backward(ctx, &worker.BackwardRequest{Key: "a"})
			Expect(err).To(MatchError(dynamo.ErrSessionNotFound))
		})

		It("succeeds with a cancelled context", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			Expect(svc.Reset(cctx)).To(Succeed())
		})
	})

	It("serializes concurrent callers", func() {
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				key := string(rune('a' + i))
				_, err := svc.Forward(ctx, &worker.ForwardRequest{System: pairSystem(50, 5), Precision: "double", Key: key})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(svc.Sessions(ctx)).To(HaveLen(8))
	})
})

var _ = Describe("SessionStore", func() {
	It("reports replacement and clears", func() {
		st := worker.NewSessionStore()
		Expect(st.Put(&worker.Session{Key: "k"})).To(BeFalse())
		Expect(st.Put(&worker.Session{Key: "k"})).To(BeTrue())
		Expect(st.Len()).To(Equal(1))
		_, ok := st.Get("k")
		Expect(ok).To(BeTrue())
		Expect(st.Clear()).To(Equal(1))
		_, ok = st.Get("k")
		Expect(ok).To(BeFalse())
	})
})
