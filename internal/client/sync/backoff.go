package sync

import "time"

// backoffDelay вычисляет задержку перед попыткой retries+1 по
// экспоненте: base, base*factor, base*factor^2, ... с потолком max.
// Та же форма, что у защиты логина от перебора: 1s, 2s, 4s ... 30s.
func backoffDelay(base, max time.Duration, factor float64, retries int) time.Duration {
	delay := float64(base)
	for i := 0; i < retries; i++ {
		delay *= factor
		if delay >= float64(max) {
			return max
		}
	}
	if delay >= float64(max) {
		return max
	}
	return time.Duration(delay)
}
