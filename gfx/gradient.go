package gfx

import "honnef.co/go/curve"

type ColorStop struct {
	Offset float32
	Color  Color
}

func (cs ColorStop) WithAlphaFactor(alpha float32) ColorStop {
	cs.Color.A *= alpha
	return cs
}

type Gradient interface {
	Stops() []ColorStop
	isGradient()
}

type LinearGradient struct {
	Start      curve.Point
	End        curve.Point
	ColorStops []ColorStop
	Extend     Extend
}

func (g LinearGradient) Stops() []ColorStop { return g.ColorStops }
func (LinearGradient) isGradient()          {}

type RadialGradient struct {
	Center     curve.Point
	Radius     float32
	ColorStops []ColorStop
	Extend     Extend
}

func (g RadialGradient) Stops() []ColorStop { return g.ColorStops }
func (RadialGradient) isGradient()          {}
