package system

import (
	"image"
	"sync"
)

// ImagePool переиспользует кадры *image.RGBA одинакового размера.
// Кэш кадров декодирует сотни изображений одного разрешения, поэтому
// без пула каждая прокрутка нагружает Garbage Collector.
type ImagePool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex
}

var globalPool = NewImagePool()

func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Point]*sync.Pool)}
}

// DefaultPool возвращает общий пул процесса.
func DefaultPool() *ImagePool {
	return globalPool
}

// Get возвращает *image.RGBA с границами rect. Содержимое не очищается:
// вызывающий код перерисовывает кадр целиком.
func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	size := rect.Size()
	p.mu.RLock()
	pool, exists := p.pools[size]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		pool, exists = p.pools[size]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					return image.NewRGBA(image.Rectangle{Max: size})
				},
			}
			p.pools[size] = pool
		}
		p.mu.Unlock()
	}

	img := pool.Get().(*image.RGBA)
	img.Rect = image.Rectangle{Min: rect.Min, Max: rect.Min.Add(size)}
	return img
}

func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil || img.Stride != img.Rect.Dx()*4 {
		return
	}
	size := img.Rect.Size()
	p.mu.RLock()
	pool, exists := p.pools[size]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}
