package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/gekko3d/rtbvh/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/urfave/cli/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"
)

type camera struct {
	eye     mgl32.Vec3
	forward mgl32.Vec3
	right   mgl32.Vec3
	up      mgl32.Vec3
	tanHalf float32
	aspect  float32
}

// frameScene places the camera on +z looking at the center of bounds.
func frameScene(bounds core.AABB, fovDeg float64, aspect float32) camera {
	center := bounds.Centroid()
	radius := bounds.Extent().Len() * 0.5
	if radius == 0 {
		radius = 1
	}
	tanHalf := float32(math.Tan(fovDeg * math.Pi / 360))
	eye := center.Add(mgl32.Vec3{0, 0, radius/tanHalf + radius})

	return camera{
		eye:     eye,
		forward: center.Sub(eye).Normalize(),
		right:   mgl32.Vec3{1, 0, 0},
		up:      mgl32.Vec3{0, 1, 0},
		tanHalf: tanHalf,
		aspect:  aspect,
	}
}

// ray maps pixel (x, y) of a w x h image to a primary ray.
func (c camera) ray(x, y, w, h int) (origin, dir mgl32.Vec3) {
	u := (2*(float32(x)+0.5)/float32(w) - 1) * c.tanHalf * c.aspect
	v := (1 - 2*(float32(y)+0.5)/float32(h)) * c.tanHalf
	return c.eye, c.forward.Add(c.right.Mul(u)).Add(c.up.Mul(v)).Normalize()
}

func traceScene(c *cli.Context) error {
	s, err := loadScene(c)
	if err != nil {
		return err
	}
	defer s.Close()

	w, h := c.Int("width"), c.Int("height")
	if w <= 0 || h <= 0 {
		return cli.Exit("image size must be positive", 2)
	}

	bounds := core.EmptyAABB()
	for _, v := range s.mesh.Vertices {
		bounds.Grow(v.Vec3())
	}
	cam := frameScene(bounds, c.Float64("fov"), float32(w)/float32(h))

	start := time.Now()
	depth := make([]float32, w*h)
	var hits atomic.Int64

	g, ctx := errgroup.WithContext(c.Context)
	for y := 0; y < h; y++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for x := 0; x < w; x++ {
				origin, dir := cam.ray(x, y, w, h)
				hit := s.reg.IntersectTLAS(origin, dir)
				depth[y*w+x] = hit.T
				if hit.IsHit() {
					hits.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	img := shadeDepth(depth, w, h)
	label := fmt.Sprintf("%d/%d hits  %d instances  %.1f Mrays/s",
		hits.Load(), w*h, len(s.reg.Instances()), float64(w*h)/elapsed.Seconds()/1e6)
	annotate(img, label)

	out := c.String("out")
	f, err := os.Create(out)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding %s: %w", out, err)
	}
	s.log.Infof("wrote %s (%s)", out, label)
	return nil
}

// shadeDepth maps the nearest hit to white and the farthest to dark gray.
func shadeDepth(depth []float32, w, h int) *image.RGBA {
	near, far := float32(math.Inf(1)), float32(0)
	for _, d := range depth {
		if math.IsInf(float64(d), 1) {
			continue
		}
		near = min(near, d)
		far = max(far, d)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, d := range depth {
		c := color.RGBA{A: 255}
		if !math.IsInf(float64(d), 1) {
			shade := float32(1)
			if far > near {
				shade = 1 - 0.75*(d-near)/(far-near)
			}
			g := uint8(shade * 255)
			c = color.RGBA{R: g, G: g, B: g, A: 255}
		}
		img.SetRGBA(i%w, i/w, c)
	}
	return img
}

func annotate(img *image.RGBA, label string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 200, A: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, 14),
	}
	d.DrawString(label)
}
