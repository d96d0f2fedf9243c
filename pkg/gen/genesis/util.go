package genesis

import (
	"bytes"
	"context"
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/executor"
)

func mustEnc(i cbg.CBORMarshaler) []byte {
	buf := new(bytes.Buffer)
	if err := i.MarshalCBOR(buf); err != nil {
		panic(err) // ok
	}
	return buf.Bytes()
}

func doExecValue(ctx context.Context, ex *executor.Executor, to address.Address, value abi.TokenAmount, method abi.MethodNum, params []byte) ([]byte, error) {
	ret, err := ex.ApplyImplicitMessage(ctx, builtin.SystemActorAddr, to, method, params, value)
	if err != nil {
		return nil, fmt.Errorf("doExec apply message failed: %w", err)
	}

	if ret.Receipt.ExitCode != 0 {
		return nil, fmt.Errorf("failed to call method: %s", ret.Receipt.String())
	}

	return ret.Receipt.ReturnValue, nil
}
