package adapter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Base mainnet is the execution chain.
const (
	ChainID       int64 = 8453
	DefaultRPCURL       = "https://mainnet.base.org"

	// Canonical contract deployments on Base.
	WETHAddress        = "0x4200000000000000000000000000000000000006"
	SwapRouterAddress  = "0x2626664c2603336E57B271c5C0b26F421741e481"
	AavePoolAddress    = "0xA238Dd80C259a72e81d7e4664a9801593F98d1c5"
	WETHGatewayAddress = "0x8be473dCfA93132658821E67CbEB684ec8Ea2E74"
	defaultSwapPoolFee = 500
)

// ABI fragments for the contracts the adapters call.
const (
	erc20ABIJSON = `[
		{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
	]`

	swapRouterABIJSON = `[
		{"name":"exactInputSingle","type":"function","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"fee","type":"uint24"},{"name":"recipient","type":"address"},{"name":"amountIn","type":"uint256"},{"name":"amountOutMinimum","type":"uint256"},{"name":"sqrtPriceLimitX96","type":"uint160"}]}],"outputs":[{"name":"amountOut","type":"uint256"}]}
	]`

	aavePoolABIJSON = `[
		{"name":"supply","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"onBehalfOf","type":"address"},{"name":"referralCode","type":"uint16"}],"outputs":[]},
		{"name":"withdraw","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"to","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
	]`

	wethGatewayABIJSON = `[
		{"name":"depositETH","type":"function","stateMutability":"payable","inputs":[{"name":"pool","type":"address"},{"name":"onBehalfOf","type":"address"},{"name":"referralCode","type":"uint16"}],"outputs":[]},
		{"name":"withdrawETH","type":"function","stateMutability":"nonpayable","inputs":[{"name":"pool","type":"address"},{"name":"amount","type":"uint256"},{"name":"to","type":"address"}],"outputs":[]}
	]`
)

var (
	abiOnce        sync.Once
	erc20ABI       abi.ABI
	swapRouterABI  abi.ABI
	aavePoolABI    abi.ABI
	wethGatewayABI abi.ABI
	abiErr         error
)

func loadABIs() error {
	abiOnce.Do(func() {
		parse := func(name, raw string) abi.ABI {
			parsed, err := abi.JSON(strings.NewReader(raw))
			if err != nil && abiErr == nil {
				abiErr = fmt.Errorf("parse %s abi: %w", name, err)
			}
			return parsed
		}
		erc20ABI = parse("erc20", erc20ABIJSON)
		swapRouterABI = parse("swap router", swapRouterABIJSON)
		aavePoolABI = parse("aave pool", aavePoolABIJSON)
		wethGatewayABI = parse("weth gateway", wethGatewayABIJSON)
	})
	return abiErr
}

func ResolveRPCURL(override string) string {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override)
	}
	return DefaultRPCURL
}
