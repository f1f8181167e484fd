package workflow

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/javanstorm/toolchainqa/internal/nfs"
	"github.com/javanstorm/toolchainqa/internal/vm"
)

// MountShared checks that the guest answers, then mounts dir from the
// host's export at the same path inside the guest. Each command runs only
// if the previous one exited zero; the mount is validated once the guest
// has answered.
func MountShared(ctx context.Context, session vm.Session, endpoint nfs.Endpoint, dir string, udp bool, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("step", "mount")

	if _, err := runRemote(ctx, session, remoteCall{
		step:    "ssh check",
		cmd:     vm.Shell("uname"),
		kind:    KindRemoteCommand,
		message: "VM SSH check failed",
	}, log); err != nil {
		return err
	}

	spec := vm.NewMountSpec(session.ServerIP(), dir, endpoint.DataPort, endpoint.MountPort, udp)
	if err := spec.Validate(); err != nil {
		return &Error{Kind: KindRemoteCommand, Step: "mount", Message: "invalid NFS mount", Err: err}
	}

	calls := []remoteCall{
		{step: "mount setup", cmd: spec.MkdirCommand(), message: "failed to set up NFS mount directory on target"},
		{step: "mount", cmd: spec.MountCommand(), message: "failed to set up NFS mount on target"},
	}
	for _, c := range calls {
		c.kind = KindRemoteCommand
		if _, err := runRemote(ctx, session, c, log); err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{"server": session.ServerIP(), "dir": dir}).Info("Successfully mounted")
	return nil
}
