package autotune

// ring — буфер фиксированной ёмкости; при переполнении самый старый элемент вытесняется.
// Индексация At(i) идёт от самого старого (0) к самому новому (Len()-1).
type ring[T any] struct {
	data []T
	head int // следующая позиция записи
	n    int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{data: make([]T, capacity)}
}

// Push добавляет значение, вытесняя самое старое при заполненном буфере.
func (r *ring[T]) Push(v T) {
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	if r.n < len(r.data) {
		r.n++
	}
}

// At возвращает i-й элемент начиная с самого старого.
func (r *ring[T]) At(i int) T {
	if i < 0 || i >= r.n {
		panic("autotune: ring index out of range")
	}
	start := (r.head - r.n + len(r.data)) % len(r.data)
	return r.data[(start+i)%len(r.data)]
}

func (r *ring[T]) Len() int { return r.n }
func (r *ring[T]) Cap() int { return len(r.data) }
func (r *ring[T]) Full() bool { return r.n == len(r.data) }

// Values копирует содержимое в порядке от старого к новому.
func (r *ring[T]) Values() []T {
	out := make([]T, r.n)
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}

// Reset очищает буфер без перераспределения памяти.
func (r *ring[T]) Reset() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.head = 0
	r.n = 0
}
