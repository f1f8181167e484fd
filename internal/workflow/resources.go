package workflow

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/javanstorm/toolchainqa/internal/nfs"
	"github.com/javanstorm/toolchainqa/internal/scope"
	"github.com/javanstorm/toolchainqa/internal/vm"
)

// Resources are a booted guest and an export of the shared directory.
// Both are released together by Close.
type Resources struct {
	Session  vm.Session
	Endpoint nfs.Endpoint
	Dir      string

	scope *scope.Scope
}

// OpenResources boots image and exports dir, in that order. If the export
// cannot be started the guest is released before the error is returned.
func OpenResources(ctx context.Context, vms vm.Provider, exports nfs.Provider, image, dir string, log logrus.FieldLogger) (*Resources, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	sc := scope.New(log)

	guest, err := vms.Boot(ctx, image)
	if err != nil {
		return nil, &Error{Kind: KindResource, Step: "boot " + image, Message: "failed to start VM", Err: err}
	}
	sc.Defer("vm "+image, guest.Close)

	exp, err := exports.Start(ctx, dir)
	if err != nil {
		sc.Close()
		return nil, &Error{Kind: KindResource, Step: "export " + dir, Message: "failed to start NFS export", Err: err}
	}
	sc.Defer("nfs export "+dir, exp.Close)

	log.WithFields(logrus.Fields{
		"guest_ip":   guest.IP(),
		"data_port":  exp.Endpoint().DataPort,
		"mount_port": exp.Endpoint().MountPort,
	}).Info("VM and NFS export ready")

	return &Resources{
		Session:  guest,
		Endpoint: exp.Endpoint(),
		Dir:      dir,
		scope:    sc,
	}, nil
}

// Close releases the export, then the guest. Later calls do nothing.
func (r *Resources) Close() {
	r.scope.Close()
}
