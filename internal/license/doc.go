// Package license 签发和验证防篡改的许可证文档。
//
// 文档把一组声明（客户、产品、座位数、签发/过期日期、备注）与签名绑定。
// 支持两种模式：
//
//   - HMAC-SHA256：签发方与验证方共享密钥，密钥通过带外渠道分发。
//   - ECDSA-P256-SHA256：签发方持有私钥，公钥嵌入每个文档。
//
// 公钥模式下没有证书链，信任模型是首次使用信任（TOFU）：文档只能证明
// "持有对应私钥的人签发了它"。需要绑定到特定签发方时，验证方应通过
// VerifyOptions.PinnedKey 固定公钥。
//
// 签名输入是 Encode 生成的规范字节，只覆盖声明本身。验证永远不会因为
// 许可证本身有问题而返回错误，所有问题都以 Reason 的形式出现在 Result 中。
package license
