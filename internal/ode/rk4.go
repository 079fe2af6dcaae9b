// Package ode holds the numeric steppers agents integrate their state with.
package ode

// Func is the right-hand side of an autonomous scalar equation dy/dt = f(y).
type Func func(y float64) float64

// RK4 returns the increment of y over one classic fourth-order Runge-Kutta
// step of size dt.
func RK4(f Func, y, dt float64) float64 {
	k1 := f(y)
	k2 := f(y + dt*k1/2)
	k3 := f(y + dt*k2/2)
	k4 := f(y + dt*k3)
	return dt * (k1 + 2*k2 + 2*k3 + k4) / 6
}

// Integrate applies n RK4 steps of size dt starting at y.
func Integrate(f Func, y, dt float64, n int) float64 {
	for i := 0; i < n; i++ {
		y += RK4(f, y, dt)
	}
	return y
}
