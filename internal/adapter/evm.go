package adapter

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/nmorales/agentexec/internal/adapter/signer"
	clierr "github.com/nmorales/agentexec/internal/errors"
	"github.com/nmorales/agentexec/internal/token"
)

// Options tune transaction submission and confirmation.
type Options struct {
	RPCURL        string
	Simulate      bool
	PollInterval  time.Duration
	StepTimeout   time.Duration
	GasMultiplier float64
}

func DefaultOptions() Options {
	return Options{
		Simulate:      true,
		PollInterval:  2 * time.Second,
		StepTimeout:   2 * time.Minute,
		GasMultiplier: 1.2,
	}
}

// EVM submits transactions for both adapter backends against a single
// EVM chain. Safe for concurrent use: each call dials, submits and
// confirms independently; nonces come from the pending pool.
type EVM struct {
	rpcURL string
	signer signer.Signer
	opts   Options

	// simReturns holds eth_call return data keyed by calldata so a
	// conversion call can recover its simulated output after submission.
	simMu      sync.Mutex
	simReturns map[string][]byte
}

func NewEVM(txSigner signer.Signer, opts Options) (*EVM, error) {
	if txSigner == nil {
		return nil, clierr.New(clierr.CodeSigner, "missing signer")
	}
	if err := loadABIs(); err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "load contract abis", err)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 2 * time.Minute
	}
	if opts.GasMultiplier <= 1 {
		opts.GasMultiplier = 1.2
	}
	return &EVM{
		rpcURL:     ResolveRPCURL(opts.RPCURL),
		signer:     txSigner,
		opts:       opts,
		simReturns: make(map[string][]byte),
	}, nil
}

func (e *EVM) Swap(ctx context.Context, req Request) (Result, error) {
	amountIn, err := parseWei(req.AmountWei)
	if err != nil {
		return Result{}, err
	}
	tokenIn := WETHAddress
	tokenOut := token.USDC.Info().Address
	value := amountIn
	if !req.Token.IsNative() {
		tokenIn = req.Token.Info().Address
		tokenOut = WETHAddress
		value = big.NewInt(0)
	}

	data, err := swapRouterABI.Pack("exactInputSingle", struct {
		TokenIn           common.Address
		TokenOut          common.Address
		Fee               *big.Int
		Recipient         common.Address
		AmountIn          *big.Int
		AmountOutMinimum  *big.Int
		SqrtPriceLimitX96 *big.Int
	}{
		TokenIn:           common.HexToAddress(tokenIn),
		TokenOut:          common.HexToAddress(tokenOut),
		Fee:               big.NewInt(defaultSwapPoolFee),
		Recipient:         e.signer.Address(),
		AmountIn:          amountIn,
		AmountOutMinimum:  big.NewInt(0),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return Result{}, clierr.Wrap(clierr.CodeInternal, "pack swap calldata", err)
	}

	result, err := e.submit(ctx, func(client *ethclient.Client) (common.Address, *big.Int, []byte, error) {
		if !req.Token.IsNative() {
			if err := e.requireAllowance(ctx, client, req.Token, SwapRouterAddress, amountIn); err != nil {
				return common.Address{}, nil, nil, err
			}
		}
		return common.HexToAddress(SwapRouterAddress), value, data, nil
	}, fmt.Sprintf("swap %s %s", req.AmountWei, req.Token.Symbol()))
	if err != nil {
		return Result{}, err
	}
	result.AmountOutWei = e.lastSimAmountOut(data)
	return result, nil
}

// lastSimAmountOut decodes the router's simulated return value recorded
// by submit for this calldata, yielding the expected swap output.
func (e *EVM) lastSimAmountOut(data []byte) string {
	e.simMu.Lock()
	raw, ok := e.simReturns[string(data)]
	delete(e.simReturns, string(data))
	e.simMu.Unlock()
	if !ok || len(raw) == 0 {
		return ""
	}
	out, err := swapRouterABI.Unpack("exactInputSingle", raw)
	if err != nil || len(out) == 0 {
		return ""
	}
	amountOut, ok := out[0].(*big.Int)
	if !ok {
		return ""
	}
	return amountOut.String()
}

func (e *EVM) Transfer(ctx context.Context, req Request) (Result, error) {
	amount, err := parseWei(req.AmountWei)
	if err != nil {
		return Result{}, err
	}
	to := strings.TrimSpace(req.To)
	if !common.IsHexAddress(to) {
		return Result{}, clierr.New(clierr.CodeAdapterFailure, fmt.Sprintf("invalid transfer recipient %q", req.To))
	}
	return e.transferAmount(ctx, req.Token, common.HexToAddress(to), amount)
}

func (e *EVM) SweepRemaining(ctx context.Context, req Request) (Result, error) {
	to := strings.TrimSpace(req.To)
	if !common.IsHexAddress(to) {
		return Result{}, clierr.New(clierr.CodeAdapterFailure, fmt.Sprintf("invalid sweep destination %q", req.To))
	}

	client, err := ethclient.DialContext(ctx, e.rpcURL)
	if err != nil {
		return Result{}, clierr.Wrap(clierr.CodeUnavailable, "connect rpc", err)
	}
	remaining, err := e.balanceOf(ctx, client, req.Token)
	client.Close()
	if err != nil {
		return Result{}, err
	}
	if req.Token.IsNative() {
		// Hold back a gas allowance so the sweep itself can be paid for.
		remaining.Sub(remaining, nativeSweepGasReserve)
	}
	if remaining.Sign() <= 0 {
		return Result{Summary: fmt.Sprintf("no %s remaining to sweep", req.Token.Symbol())}, nil
	}
	return e.transferAmount(ctx, req.Token, common.HexToAddress(to), remaining)
}

func (e *EVM) Stake(ctx context.Context, req Request) (Result, error) {
	amount, err := parseWei(req.AmountWei)
	if err != nil {
		return Result{}, err
	}
	owner := e.signer.Address()

	if req.Token.IsNative() {
		data, err := wethGatewayABI.Pack("depositETH", common.HexToAddress(AavePoolAddress), owner, uint16(0))
		if err != nil {
			return Result{}, clierr.Wrap(clierr.CodeInternal, "pack stake calldata", err)
		}
		return e.submit(ctx, staticTarget(WETHGatewayAddress, amount, data),
			fmt.Sprintf("stake %s ETH", req.AmountWei))
	}

	asset := common.HexToAddress(req.Token.Info().Address)
	data, err := aavePoolABI.Pack("supply", asset, amount, owner, uint16(0))
	if err != nil {
		return Result{}, clierr.Wrap(clierr.CodeInternal, "pack stake calldata", err)
	}
	return e.submit(ctx, func(client *ethclient.Client) (common.Address, *big.Int, []byte, error) {
		if err := e.requireAllowance(ctx, client, req.Token, AavePoolAddress, amount); err != nil {
			return common.Address{}, nil, nil, err
		}
		return common.HexToAddress(AavePoolAddress), big.NewInt(0), data, nil
	}, fmt.Sprintf("stake %s %s", req.AmountWei, req.Token.Symbol()))
}

func (e *EVM) Unstake(ctx context.Context, req Request) (Result, error) {
	amount, err := parseWei(req.AmountWei)
	if err != nil {
		return Result{}, err
	}
	owner := e.signer.Address()

	if req.Token.IsNative() {
		data, err := wethGatewayABI.Pack("withdrawETH", common.HexToAddress(AavePoolAddress), amount, owner)
		if err != nil {
			return Result{}, clierr.Wrap(clierr.CodeInternal, "pack unstake calldata", err)
		}
		return e.submit(ctx, staticTarget(WETHGatewayAddress, big.NewInt(0), data),
			fmt.Sprintf("unstake %s ETH", req.AmountWei))
	}

	asset := common.HexToAddress(req.Token.Info().Address)
	data, err := aavePoolABI.Pack("withdraw", asset, amount, owner)
	if err != nil {
		return Result{}, clierr.Wrap(clierr.CodeInternal, "pack unstake calldata", err)
	}
	return e.submit(ctx, staticTarget(AavePoolAddress, big.NewInt(0), data),
		fmt.Sprintf("unstake %s %s", req.AmountWei, req.Token.Symbol()))
}

var nativeSweepGasReserve = big.NewInt(100_000_000_000_000) // 0.0001 ETH

func (e *EVM) transferAmount(ctx context.Context, tok token.Token, to common.Address, amount *big.Int) (Result, error) {
	summary := fmt.Sprintf("transfer %s %s to %s", amount.String(), tok.Symbol(), to.Hex())
	if tok.IsNative() {
		return e.submit(ctx, staticTarget(to.Hex(), amount, nil), summary)
	}
	data, err := erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return Result{}, clierr.Wrap(clierr.CodeInternal, "pack transfer calldata", err)
	}
	return e.submit(ctx, staticTarget(tok.Info().Address, big.NewInt(0), data), summary)
}

func (e *EVM) balanceOf(ctx context.Context, client *ethclient.Client, tok token.Token) (*big.Int, error) {
	owner := e.signer.Address()
	if tok.IsNative() {
		balance, err := client.BalanceAt(ctx, owner, nil)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "read native balance", err)
		}
		return balance, nil
	}
	asset := common.HexToAddress(tok.Info().Address)
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack balanceOf calldata", err)
	}
	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &asset, Data: data}, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "read token balance", err)
	}
	out, err := erc20ABI.Unpack("balanceOf", raw)
	if err != nil || len(out) == 0 {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "decode token balance", err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, clierr.New(clierr.CodeUnavailable, "invalid balance response")
	}
	return balance, nil
}

// requireAllowance rejects an ERC20 move the spender cannot pull. Reading
// the allowance keeps the one-transaction-per-invocation contract: the
// adapter never issues an approval on the caller's behalf.
func (e *EVM) requireAllowance(ctx context.Context, client *ethclient.Client, tok token.Token, spender string, amount *big.Int) error {
	asset := common.HexToAddress(tok.Info().Address)
	data, err := erc20ABI.Pack("allowance", e.signer.Address(), common.HexToAddress(spender))
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "pack allowance calldata", err)
	}
	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &asset, Data: data}, nil)
	if err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "read token allowance", err)
	}
	out, err := erc20ABI.Unpack("allowance", raw)
	if err != nil || len(out) == 0 {
		return clierr.Wrap(clierr.CodeUnavailable, "decode token allowance", err)
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return clierr.New(clierr.CodeUnavailable, "invalid allowance response")
	}
	if allowance.Cmp(amount) < 0 {
		return clierr.New(clierr.CodeAdapterFailure, fmt.Sprintf("insufficient %s allowance for %s: have %s, need %s", tok.Symbol(), spender, allowance, amount))
	}
	return nil
}

// targetFn resolves the transaction target lazily so pre-flight reads can
// share the dialed client.
type targetFn func(client *ethclient.Client) (common.Address, *big.Int, []byte, error)

func staticTarget(target string, value *big.Int, data []byte) targetFn {
	return func(*ethclient.Client) (common.Address, *big.Int, []byte, error) {
		return common.HexToAddress(target), value, data, nil
	}
}

// submit performs the single transaction attempt for one adapter call:
// optional eth_call simulation, gas and EIP-1559 fee resolution, sign,
// broadcast, then receipt polling until the step timeout.
func (e *EVM) submit(ctx context.Context, resolve targetFn, summary string) (Result, error) {
	client, err := ethclient.DialContext(ctx, e.rpcURL)
	if err != nil {
		return Result{}, clierr.Wrap(clierr.CodeUnavailable, "connect rpc", err)
	}
	defer client.Close()

	target, value, data, err := resolve(client)
	if err != nil {
		return Result{}, err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return Result{}, clierr.Wrap(clierr.CodeUnavailable, "read chain id", err)
	}
	from := e.signer.Address()
	msg := ethereum.CallMsg{From: from, To: &target, Value: value, Data: data}

	if e.opts.Simulate {
		out, err := client.CallContract(ctx, msg, nil)
		if err != nil {
			return Result{}, clierr.Wrap(clierr.CodeAdapterFailure, "simulate transaction (eth_call)", err)
		}
		if len(out) > 0 && len(data) > 0 {
			e.simMu.Lock()
			e.simReturns[string(data)] = out
			e.simMu.Unlock()
		}
	}

	gasLimit, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return Result{}, clierr.Wrap(clierr.CodeAdapterFailure, "estimate gas", err)
	}
	gasLimit = uint64(float64(gasLimit) * e.opts.GasMultiplier)

	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		tipCap = big.NewInt(2_000_000_000) // 2 gwei fallback
	}
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return Result{}, clierr.Wrap(clierr.CodeUnavailable, "fetch latest header", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return Result{}, clierr.Wrap(clierr.CodeUnavailable, "fetch nonce", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &target,
		Value:     value,
		Data:      data,
	})
	signed, err := e.signer.SignTx(chainID, tx)
	if err != nil {
		return Result{}, clierr.Wrap(clierr.CodeSigner, "sign transaction", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return Result{}, clierr.Wrap(clierr.CodeUnavailable, "broadcast transaction", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.opts.StepTimeout)
	defer cancel()
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := client.TransactionReceipt(waitCtx, signed.Hash())
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return Result{TxHash: signed.Hash().Hex(), Summary: summary}, nil
			}
			return Result{}, clierr.New(clierr.CodeAdapterFailure, "transaction reverted on-chain")
		}
		// Receipt not found yet, or a transient RPC failure; keep polling
		// until the step timeout.
		select {
		case <-waitCtx.Done():
			return Result{}, clierr.Wrap(clierr.CodeTimeout, "timed out waiting for receipt", waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func parseWei(v string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
	if !ok || amount.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeInvalidAmount, fmt.Sprintf("amount must be a positive integer in base units, got %q", v))
	}
	return amount, nil
}
