package cache

import (
	"context"
	"io"

	"github.com/jason-s-yu/durak/internal/settlement"
	"github.com/sirupsen/logrus"
)

type settlerFunc func(context.Context, settlement.Request) (settlement.Receipt, error)

func (f settlerFunc) Settle(ctx context.Context, req settlement.Request) (settlement.Receipt, error) {
	return f(ctx, req)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
