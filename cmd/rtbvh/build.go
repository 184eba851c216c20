package main

import (
	"runtime"
	"time"

	"github.com/gekko3d/rtbvh"
	"github.com/gekko3d/rtbvh/rt/mesh"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

type scene struct {
	cfg     rtbvh.Config
	log     *rtbvh.DefaultLogger
	mesh    *mesh.Mesh
	reg     *rtbvh.Registry
	handles []rtbvh.Handle
}

func (s *scene) Close() {
	_ = s.reg.Close()
	s.log.Sync()
}

// setupLogging applies the global flags over the config file.
func setupLogging(c *cli.Context) (rtbvh.Config, *rtbvh.DefaultLogger, error) {
	cfg, err := rtbvh.LoadConfig(c.String("config"))
	if err != nil {
		return cfg, nil, cli.Exit(err.Error(), 2)
	}
	if c.Bool("v") {
		cfg.Logging.Level = "debug"
	}
	if f := c.String("log-file"); f != "" {
		cfg.Logging.File = f
	}

	logger, err := rtbvh.NewLogger("rtbvh", cfg.Logging)
	if err != nil {
		return cfg, nil, cli.Exit(err.Error(), 2)
	}
	return cfg, logger, nil
}

// loadScene parses the OBJ argument and builds one entry per object.
func loadScene(c *cli.Context) (*scene, error) {
	if c.NArg() != 1 {
		return nil, cli.Exit("expected exactly one scene file", 2)
	}

	cfg, logger, err := setupLogging(c)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	m, err := mesh.LoadOBJFile(c.Args().First())
	if err != nil {
		return nil, err
	}
	logger.Infof("parsed %s: %d objects, %d triangles in %s",
		c.Args().First(), len(m.Objects), m.TriangleCount(), time.Since(start))

	s := &scene{
		cfg:     cfg,
		log:     logger,
		mesh:    m,
		reg:     rtbvh.NewRegistry(cfg, logger.Named("registry")),
		handles: make([]rtbvh.Handle, len(m.Objects)),
	}

	start = time.Now()
	g, ctx := errgroup.WithContext(c.Context)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, obj := range m.Objects {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.handles[i] = s.reg.Build(m.Vertices, obj.StartTriangle, obj.TriangleCount, true)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.Close()
		return nil, err
	}
	s.reg.BuildTLAS()
	logger.Infof("built %d BLAS and the TLAS in %s", len(s.handles), time.Since(start))
	return s, nil
}

func buildScene(c *cli.Context) error {
	s, err := loadScene(c)
	if err != nil {
		return err
	}
	defer s.Close()

	var nodeBytes, triBytes int
	for i, h := range s.handles {
		obj := s.mesh.Objects[i]
		nodeBytes += s.reg.GpuNodesSize(h)
		triBytes += s.reg.GpuTrisSize(h)
		s.log.Debugf("  %-20s handle=%#x tris=%d nodes=%dB tris=%dB",
			obj.Name, uint64(h), obj.TriangleCount, s.reg.GpuNodesSize(h), s.reg.GpuTrisSize(h))
	}
	s.log.Infof("BLAS buffers: nodes=%dB tris=%dB", nodeBytes, triBytes)
	s.log.Infof("TLAS buffers: nodes=%dB indices=%dB instances=%d",
		s.reg.TLASNodesSize(), s.reg.TLASIndicesSize(), len(s.reg.Instances()))
	s.log.Infof("\n%s", s.reg.Stats())

	if path := c.String("save-config"); path != "" {
		if err := s.cfg.SaveTo(path); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		s.log.Infof("config written to %s", path)
	}
	return nil
}
