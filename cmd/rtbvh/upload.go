package main

import (
	"github.com/gekko3d/rtbvh/rt/gpu"

	"github.com/urfave/cli/v2"
)

func uploadScene(c *cli.Context) error {
	s, err := loadScene(c)
	if err != nil {
		return err
	}
	defer s.Close()

	layout, err := gpu.PackScene(s.reg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	tlasNodes, tlasIndices, ok := s.reg.TLASData()
	if !ok {
		return cli.Exit("TLAS was not built", 1)
	}

	dev, err := gpu.NewHeadlessDevice(s.cfg.GPU.PowerPreference)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer dev.Release()

	mgr := gpu.NewBufferManager(dev.Device, s.cfg.GPU.Headroom)
	defer mgr.Release()

	if err := mgr.Upload(layout, tlasNodes.Bytes(), tlasIndices.Bytes()); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	s.log.Infof("uploaded %d instances: nodes=%dB tris=%dB records=%dB tlas=%dB+%dB (%d allocations)",
		len(layout.Records), len(layout.Nodes), len(layout.Tris), len(layout.Instances),
		tlasNodes.Len(), tlasIndices.Len(), mgr.Reallocations)
	return nil
}
