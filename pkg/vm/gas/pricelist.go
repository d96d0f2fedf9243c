package gas

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
)

// Pricelist prices the operations performed while executing a message.
type Pricelist interface {
	// OnMethodInvocation is charged once per call frame.
	OnMethodInvocation(value abi.TokenAmount, methodNum abi.MethodNum) GasCharge
	// OnCreateActor is charged when an account actor is created implicitly.
	OnCreateActor() GasCharge

	OnIpldGet() GasCharge
	OnIpldPut(dataSize int) GasCharge

	OnBlockCreate(dataSize int) GasCharge
	OnBlockRead(dataSize int) GasCharge
	OnBlockLink(dataSize int) GasCharge
}

type pricelistV0 struct {
	storageGasMulti int64

	sendBase                int64
	sendTransferFunds       int64
	sendTransferOnlyPremium int64
	sendInvokeMethod        int64

	createActorCompute int64
	createActorStorage int64

	ipldGetBase    int64
	ipldPutBase    int64
	ipldPutPerByte int64

	blockCreateBase    int64
	blockReadBase      int64
	blockLinkBase      int64
	blockMemoryPerByte int64
}

var _ Pricelist = (*pricelistV0)(nil)

// NewPricelist returns the default price schedule.
func NewPricelist() Pricelist {
	return &pricelistV0{
		storageGasMulti: 1300,

		sendBase:                29233,
		sendTransferFunds:       27500,
		sendTransferOnlyPremium: 159672,
		sendInvokeMethod:        -5377,

		createActorCompute: 1108454,
		createActorStorage: 36 + 40,

		ipldGetBase:    114617,
		ipldPutBase:    353640,
		ipldPutPerByte: 1,

		blockCreateBase:    1500,
		blockReadBase:      500,
		blockLinkBase:      353640,
		blockMemoryPerByte: 2,
	}
}

func (pl *pricelistV0) OnMethodInvocation(value abi.TokenAmount, methodNum abi.MethodNum) GasCharge {
	ret := pl.sendBase
	extra := ""

	if big.Cmp(value, abi.NewTokenAmount(0)) != 0 {
		ret += pl.sendTransferFunds
		if methodNum == 0 {
			ret += pl.sendTransferOnlyPremium
		}
		extra += "t"
	}

	if methodNum != 0 {
		extra += "i"
		ret += pl.sendInvokeMethod
	}
	return NewGasCharge("OnMethodInvocation", ret, 0).WithExtra(extra)
}

func (pl *pricelistV0) OnCreateActor() GasCharge {
	return NewGasCharge("OnCreateActor", pl.createActorCompute, pl.createActorStorage*pl.storageGasMulti)
}

func (pl *pricelistV0) OnIpldGet() GasCharge {
	return NewGasCharge("OnIpldGet", pl.ipldGetBase, 0)
}

func (pl *pricelistV0) OnIpldPut(dataSize int) GasCharge {
	return NewGasCharge("OnIpldPut", pl.ipldPutBase+int64(dataSize)*pl.ipldPutPerByte, int64(dataSize)*pl.storageGasMulti).
		WithExtra(dataSize)
}

func (pl *pricelistV0) OnBlockCreate(dataSize int) GasCharge {
	return NewGasCharge("OnBlockCreate", pl.blockCreateBase+int64(dataSize)*pl.blockMemoryPerByte, 0).WithExtra(dataSize)
}

func (pl *pricelistV0) OnBlockRead(dataSize int) GasCharge {
	return NewGasCharge("OnBlockRead", pl.blockReadBase+int64(dataSize)*pl.blockMemoryPerByte, 0).WithExtra(dataSize)
}

// OnBlockLink covers hashing the block and writing it to the store.
func (pl *pricelistV0) OnBlockLink(dataSize int) GasCharge {
	return NewGasCharge("OnBlockLink", pl.blockLinkBase+int64(dataSize)*pl.ipldPutPerByte, int64(dataSize)*pl.storageGasMulti).
		WithExtra(dataSize)
}
