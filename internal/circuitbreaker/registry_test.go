package circuitbreaker_test

import (
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/link-rotator/internal/circuitbreaker"
)

type transition struct {
	origin   string
	from, to circuitbreaker.State
}

var _ = Describe("Registry", func() {
	const origin = "https://raw.example.test/links.txt"

	var registry *circuitbreaker.Registry

	BeforeEach(func() {
		registry = circuitbreaker.NewRegistry(2, 30*time.Second)
	})

	Describe("GetBreaker", func() {
		It("should create a closed breaker for an unknown origin", func() {
			cb := registry.GetBreaker(origin)
			Expect(cb).NotTo(BeNil())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should return the same breaker for the same origin", func() {
			Expect(registry.GetBreaker(origin)).To(BeIdenticalTo(registry.GetBreaker(origin)))
		})

		It("should key on the full origin including the query", func() {
			Expect(registry.GetBreaker(origin)).NotTo(BeIdenticalTo(registry.GetBreaker(origin + "?v=2")))
		})

		It("should use the registry threshold", func() {
			cb := registry.GetBreaker(origin)
			cb.RecordFailure()
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			Expect(registry.Open()).To(BeTrue())
		})
	})

	Describe("shared clock", func() {
		It("should let every breaker half-open on the registry clock", func() {
			clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
			registry = circuitbreaker.NewRegistry(1, time.Minute,
				circuitbreaker.WithRegistryClock(clock.Now))

			cb := registry.GetBreaker(origin)
			cb.RecordFailure()
			Expect(cb.Allow()).To(BeFalse())

			clock.Advance(time.Minute)
			Expect(cb.Allow()).To(BeTrue())
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
		})
	})

	Describe("transition hook", func() {
		It("should report each state change with its origin", func() {
			var (
				mu   sync.Mutex
				seen []transition
			)
			clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
			registry = circuitbreaker.NewRegistry(1, time.Minute,
				circuitbreaker.WithRegistryClock(clock.Now),
				circuitbreaker.WithTransitionHook(func(o string, from, to circuitbreaker.State) {
					mu.Lock()
					defer mu.Unlock()
					seen = append(seen, transition{o, from, to})
				}))

			cb := registry.GetBreaker(origin)
			cb.RecordFailure()
			clock.Advance(time.Minute)
			Expect(cb.Allow()).To(BeTrue())
			cb.RecordSuccess()
			cb.RecordSuccess()

			Expect(seen).To(Equal([]transition{
				{origin, circuitbreaker.StateClosed, circuitbreaker.StateOpen},
				{origin, circuitbreaker.StateOpen, circuitbreaker.StateHalfOpen},
				{origin, circuitbreaker.StateHalfOpen, circuitbreaker.StateClosed},
			}))
		})
	})

	Describe("Status", func() {
		It("should list origins sorted with state and failures", func() {
			registry.GetBreaker("b")
			open := registry.GetBreaker("a")
			open.RecordFailure()
			open.RecordFailure()

			Expect(registry.Status()).To(Equal([]circuitbreaker.OriginStatus{
				{Origin: "a", State: "OPEN", Failures: 2},
				{Origin: "b", State: "CLOSED", Failures: 0},
			}))
		})
	})

	Describe("Forget and Reset", func() {
		It("should start a forgotten origin closed again", func() {
			cb := registry.GetBreaker(origin)
			cb.RecordFailure()
			cb.RecordFailure()

			registry.Forget(origin)
			Expect(registry.Open()).To(BeFalse())
			Expect(registry.GetBreaker(origin).State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should forget all breakers", func() {
			cb := registry.GetBreaker(origin)
			registry.Reset()
			Expect(registry.Status()).To(BeEmpty())
			Expect(registry.GetBreaker(origin)).NotTo(BeIdenticalTo(cb))
		})
	})

	Describe("Concurrent access", func() {
		It("should hand out one breaker per origin", func() {
			const goroutines = 50

			var wg sync.WaitGroup
			breakers := make([]*circuitbreaker.CircuitBreaker, goroutines)

			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					breakers[id] = registry.GetBreaker(fmt.Sprintf("origin-%d", id%5))
				}(i)
			}
			wg.Wait()

			Expect(registry.Status()).To(HaveLen(5))
			for i := 5; i < goroutines; i++ {
				Expect(breakers[i]).To(BeIdenticalTo(breakers[i%5]))
			}
		})
	})
})
