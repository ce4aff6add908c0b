package main

import (
	"context"
	"sync"

	"github.com/jangala-dev/tinygo-usart/internal/config"
	"github.com/jangala-dev/tinygo-usart/sim"
	"github.com/jangala-dev/tinygo-usart/usartx"
)

// rig is a set of initialized units, each on its own running simulated port.
type rig struct {
	tbl   usartx.Table
	units []*usartx.USART
	ports []*sim.Port
	conf  []config.Unit

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// lookupUnit returns the configured unit n, or unit n with the settings of
// the first configured unit.
func lookupUnit(n int) config.Unit {
	if cu, ok := settings.Find(n); ok {
		return cu
	}
	cu := settings.Units[0]
	cu.Unit = n
	return cu
}

func newRig(ctx context.Context, nums ...int) (*rig, error) {
	r := &rig{}
	for _, n := range nums {
		cu := lookupUnit(n)
		u, p, err := bringUp(&r.tbl, cu)
		if err != nil {
			r.release()
			return nil, err
		}
		r.units = append(r.units, u)
		r.ports = append(r.ports, p)
		r.conf = append(r.conf, cu)
	}

	ctx, r.cancel = context.WithCancel(ctx)
	for i, p := range r.ports {
		r.wg.Add(1)
		go func(p *sim.Port, cu config.Unit) {
			defer r.wg.Done()
			p.Run(ctx, settings.CharTime(cu))
		}(p, r.conf[i])
	}
	for i, u := range r.units {
		u.Init(settings.Divisor(r.conf[i]))
	}
	return r, nil
}

// name returns the unit name of member i.
func (r *rig) name(i int) string { return usartx.Unit(r.conf[i].Unit).String() }

// restart closes member i and initializes it again.
func (r *rig) restart(i int) {
	r.units[i].Close()
	r.units[i].Init(settings.Divisor(r.conf[i]))
}

// stop closes every unit while the ports still run, so pending output drains,
// then stops the ports.
func (r *rig) stop() {
	for _, u := range r.units {
		if u.State() == usartx.Running {
			u.Close()
		}
	}
	r.cancel()
	r.wg.Wait()
	r.release()
}

func (r *rig) release() {
	for _, cu := range r.conf {
		r.tbl.Release(usartx.Unit(cu.Unit))
	}
}
